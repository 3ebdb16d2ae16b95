package tables

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func init() {
	core.Register(core.ImportDefinition{
		Info: core.EntityInfo{
			Key:   core.EntityProducts,
			Label: "Products",
			Order: orderProducts,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "article", Synonyms: []string{"Артикул", "Article"}, Type: core.CellText, Required: true},
			{Name: "name", Synonyms: []string{"Наименование товара", "Наименование", "Name"}, Type: core.CellText, Required: true},
			{Name: "unit", Synonyms: []string{"Единица измерения", "Ед. изм.", "Unit"}, Type: core.CellText},
			{Name: "price", Synonyms: []string{"Цена", "Price"}, Type: core.CellNumber, Required: true},
			{Name: "supplier", Synonyms: []string{"Поставщик", "Supplier"}, Type: core.CellIdentifier, Required: true},
			{Name: "manufacturer", Synonyms: []string{"Производитель", "Manufacturer"}, Type: core.CellIdentifier, Required: true},
			{Name: "category", Synonyms: []string{"Категория товара", "Категория", "Category"}, Type: core.CellIdentifier, Required: true},
			{Name: "discount", Synonyms: []string{"Действующая скидка", "Скидка", "Discount"}, Type: core.CellInteger},
			{Name: "quantity", Synonyms: []string{"Кол-во на складе", "Количество на складе", "Количество", "Quantity"}, Type: core.CellInteger},
			{Name: "description", Synonyms: []string{"Описание товара", "Описание", "Description"}, Type: core.CellText},
			{Name: "photo", Synonyms: []string{"Фото", "Photo"}, Type: core.CellText},
		},
		Import: importProducts,
	})
}

const (
	insertProduct = `
		INSERT INTO product (article, name, unit, price, discount, quantity, description, photo,
		                     category_id, supplier_id, manufacturer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (article) DO NOTHING`

	upsertProduct = `
		INSERT INTO product (article, name, unit, price, discount, quantity, description, photo,
		                     category_id, supplier_id, manufacturer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (article) DO UPDATE SET
			name = EXCLUDED.name,
			unit = EXCLUDED.unit,
			price = EXCLUDED.price,
			discount = EXCLUDED.discount,
			quantity = EXCLUDED.quantity,
			description = EXCLUDED.description,
			photo = EXCLUDED.photo,
			category_id = EXCLUDED.category_id,
			supplier_id = EXCLUDED.supplier_id,
			manufacturer_id = EXCLUDED.manufacturer_id`
)

// importProducts creates categories, suppliers and manufacturers first,
// then inserts products. An existing article is kept or replaced per the
// configured conflict policy.
func importProducts(ctx context.Context, ic *core.ImportContext) error {
	refs := []refField{
		{field: "category", cache: core.NewReferenceCache(core.RefCategory)},
		{field: "supplier", cache: core.NewReferenceCache(core.RefSupplier)},
		{field: "manufacturer", cache: core.NewReferenceCache(core.RefManufacturer)},
	}
	if err := createReferences(ctx, ic, refs); err != nil {
		return err
	}

	query := insertProduct
	if ic.Options.ConflictFor(core.EntityProducts) == core.ConflictReplace {
		query = upsertProduct
	}

	return core.InsertRows(ctx, ic, func(ctx context.Context, tx pgx.Tx, i int) (core.RowOutcome, error) {
		line := ic.Line(i)

		article := ic.Text(i, "article")
		if article == "" {
			return core.RowSkipped, core.SkipRow("article", core.ReasonRequired)
		}
		name := ic.Text(i, "name")
		if name == "" {
			return core.RowSkipped, core.SkipRow("name", core.ReasonRequired)
		}

		ids := make([]int32, len(refs))
		for j, r := range refs {
			id, ok, err := r.cache.Lookup(ctx, tx, ic.Text(i, r.field))
			if err != nil {
				return core.RowSkipped, err
			}
			if !ok {
				return core.RowSkipped, core.SkipRow(r.field, core.ErrUnresolvedReference.Error())
			}
			ids[j] = id
		}

		price, err := numberField(ic, i, "price")
		if err != nil {
			return core.RowSkipped, err
		}
		if price.IsNegative() {
			ic.Result.Note(line, "price", "negative value clamped to 0")
			price = decimal.Zero
		}
		if price.Round(2).GreaterThan(core.MaxPrice) {
			return core.RowSkipped, core.SkipRow("price", core.ReasonTooLarge)
		}

		discount, err := intField(ic, i, "discount")
		if err != nil {
			return core.RowSkipped, err
		}
		quantity, err := intField(ic, i, "quantity")
		if err != nil {
			return core.RowSkipped, err
		}
		if quantity < 0 {
			ic.Result.Note(line, "quantity", "negative value clamped to 0")
			quantity = 0
		}

		unit := ic.Text(i, "unit")
		if unit == "" {
			unit = core.DefaultUnit
		}

		tag, err := tx.Exec(ctx, query,
			article, name, unit, core.ToPgNumeric(price.Round(2)), discount, quantity,
			ic.Text(i, "description"), ic.Text(i, "photo"),
			ids[0], ids[1], ids[2],
		)
		if err != nil {
			return core.RowSkipped, fmt.Errorf("insert product %s: %w", article, err)
		}
		if tag.RowsAffected() == 0 {
			return core.RowDuplicate, nil
		}
		return core.RowInserted, nil
	})
}

// numberField coerces a numeric cell. Under the zero policy an unparsable
// value becomes 0 with a diagnostic; under the skip policy the row is
// rejected.
func numberField(ic *core.ImportContext, i int, field string) (decimal.Decimal, error) {
	v, issue := ic.Value(i, field, core.CellNumber)
	if issue != nil {
		if issue.Skip {
			return decimal.Zero, core.SkipRow(field, issue.Error())
		}
		ic.Result.Note(ic.Line(i), field, issue.Error()+", stored as 0")
	}
	return v.Number, nil
}

// intField is numberField for integer columns.
func intField(ic *core.ImportContext, i int, field string) (int32, error) {
	v, issue := ic.Value(i, field, core.CellInteger)
	if issue != nil {
		if issue.Skip {
			return 0, core.SkipRow(field, issue.Error())
		}
		ic.Result.Note(ic.Line(i), field, issue.Error()+", stored as 0")
		return 0, nil
	}
	n, ok := toInt32(v.Int)
	if !ok {
		return 0, core.SkipRow(field, core.ReasonInvalidInteger)
	}
	return n, nil
}
