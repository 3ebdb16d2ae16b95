package tables

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/shoestore/internal/core"
)

func parse(t *testing.T, data string) *core.SourceTable {
	t.Helper()
	table, err := core.ParseTable([]byte(data), core.ReadOptions{Headerless: true, AllowSingleColumn: true})
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	return table
}

func TestExtractAddresses(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []address
	}{
		{
			name: "quoted, missing and plain",
			data: " \"Main St 5\" \nnan\nSecond Ave 9\n",
			want: []address{{Row: 0, Value: "Main St 5"}, {Row: 2, Value: "Second Ave 9"}},
		},
		{
			name: "column by column",
			data: "420151, Lesnaya 1\n125061, Shkolnaya 2\n",
			want: []address{
				{Row: 0, Value: "420151"},
				{Row: 1, Value: "125061"},
				{Row: 0, Value: "Lesnaya 1"},
				{Row: 1, Value: "Shkolnaya 2"},
			},
		},
		{
			name: "short fragments dropped",
			data: "ab,Oak St 1\n",
			want: []address{{Row: 0, Value: "Oak St 1"}},
		},
		{
			name: "columns past the third ignored",
			data: "Road 1,Road 2,Road 3,Road 4\n",
			want: []address{{Row: 0, Value: "Road 1"}, {Row: 0, Value: "Road 2"}, {Row: 0, Value: "Road 3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractAddresses(parse(t, tt.data))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractAddresses() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCleanAddress(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: `  "Main St 5"  `, want: "Main St 5", wantOK: true},
		{in: `'Oak St 1'`, want: "Oak St 1", wantOK: true},
		{in: "ул. Мира", want: "ул. Мира", wantOK: true},
		{in: "None", wantOK: false},
		{in: "", wantOK: false},
		{in: `"ab"`, wantOK: false},
		{in: "Мир", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := cleanAddress(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("cleanAddress(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToInt32(t *testing.T) {
	if n, ok := toInt32(36); !ok || n != 36 {
		t.Errorf("toInt32(36) = %d, %v", n, ok)
	}
	if _, ok := toInt32(1 << 40); ok {
		t.Error("toInt32 accepted an overflowing value")
	}
}

func TestRegistration(t *testing.T) {
	var keys []string
	for _, def := range core.All() {
		keys = append(keys, def.Info.Key)
	}
	want := []string{core.EntityUsers, core.EntityPoints, core.EntityProducts, core.EntityOrders}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("registered entities = %v, want %v", keys, want)
	}

	points, _ := core.Get(core.EntityPoints)
	if !points.Info.Headerless || len(points.FieldSpecs) != 0 {
		t.Errorf("points definition = %+v", points.Info)
	}

	products, _ := core.Get(core.EntityProducts)
	required := map[string]bool{}
	for _, f := range products.FieldSpecs {
		if f.Required {
			required[f.Name] = true
		}
	}
	for _, name := range []string{"article", "name", "price", "supplier", "manufacturer", "category"} {
		if !required[name] {
			t.Errorf("products field %q is not required", name)
		}
	}
}
