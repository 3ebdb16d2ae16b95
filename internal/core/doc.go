// Package core provides the business logic of the shoe-store back office.
//
// It holds the spreadsheet import pipeline and the catalog and order
// operations that the web front end and the importer CLI call. Nothing in
// this package knows about HTTP or terminals.
//
// # Import Pipeline
//
// Each source file flows strictly forward through five stages:
//
//  1. [ReadTable] loads an XLSX workbook or a delimited text file of unknown
//     encoding and separator into a [SourceTable].
//  2. [ResolveColumns] maps localized header synonyms onto canonical fields.
//  3. [ReferenceCache] deduplicates lookup values (category, supplier,
//     manufacturer, role, status, pickup point) and assigns stable ids.
//  4. The entity importers registered from package tables coerce each row
//     with [ParseCellAs] and insert it, skipping bad rows with a [Diagnostic].
//  5. [ParseLineItems] decodes the order's "article, quantity, ..." field.
//
// Entities are registered at init time using [Register] and run by
// [Service.ImportAll] in ascending [EntityInfo.Order]:
//
//	core.Register(core.ImportDefinition{
//	    Info:       core.EntityInfo{Key: "users", Label: "Users", Order: 10},
//	    FieldSpecs: userFields,
//	    Import:     importUsers,
//	})
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each category carries a code for support reference:
//
//   - DB001-DB009: database errors
//   - VAL001-VAL009: validation errors
//   - FILE001-FILE004: file errors
//   - IMP001-IMP003: import errors
//   - AUTH001-AUTH003: authentication and authorization
//   - REQ001-REQ002, RATE001: request handling
package core
