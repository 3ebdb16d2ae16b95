package core

import (
	"context"
	"testing"
)

func noopImport(context.Context, *ImportContext) error { return nil }

func TestRegistry(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	Register(ImportDefinition{Info: EntityInfo{Key: "orders", Order: 4}, Import: noopImport})
	Register(ImportDefinition{Info: EntityInfo{Key: "users", Order: 1}, Import: noopImport})
	Register(ImportDefinition{Info: EntityInfo{Key: "points", Order: 2, Headerless: true}, Import: noopImport})

	if got := EntityCount(); got != 3 {
		t.Fatalf("EntityCount() = %d, want 3", got)
	}

	var keys []string
	for _, def := range All() {
		keys = append(keys, def.Info.Key)
	}
	want := []string{"users", "points", "orders"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("All() order = %v, want %v", keys, want)
		}
	}

	def, ok := Get("points")
	if !ok || !def.Info.Headerless {
		t.Errorf("Get(points) = %+v, %v", def.Info, ok)
	}
	if _, ok := Get("suppliers"); ok {
		t.Error("Get(suppliers) found an unregistered entity")
	}
}

func TestRegister_Panics(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	tests := []struct {
		name string
		def  ImportDefinition
	}{
		{name: "duplicate key", def: ImportDefinition{Info: EntityInfo{Key: "users"}, Import: noopImport}},
		{name: "missing import", def: ImportDefinition{Info: EntityInfo{Key: "products"}}},
	}

	Register(ImportDefinition{Info: EntityInfo{Key: "users"}, Import: noopImport})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Register() did not panic")
				}
			}()
			Register(tt.def)
		})
	}
}
