package tables_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/shoestore/internal/core"
	_ "github.com/JonMunkholm/shoestore/internal/core/tables"
	"github.com/JonMunkholm/shoestore/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sourceFiles = map[string]string{
	core.EntityUsers:    "user_import.csv",
	core.EntityPoints:   "Пункты выдачи_import.csv",
	core.EntityProducts: "Tovar.xlsx",
	core.EntityOrders:   "Заказ_import.csv",
}

const usersCSV = `Роль сотрудника,ФИО,Логин,Пароль
Администратор,Никифорова Весения Николаевна,94d5ous@gmail.com,uzWC67
Авторизированный клиент,Степанов Михаил Артёмович,1diph5e@tutanota.com,8ntwUp
Менеджер,Степанов Михаил Артёмович,1diph5e@tutanota.com,other
`

const pointsCSV = ` "Main St 5" 
nan
Second Ave 9
`

const ordersCSV = `Номер заказа;Артикул заказа;Дата заказа;Дата доставки;Адрес пункта выдачи;ФИО авторизированного клиента;Код для получения;Статус заказа
5;B1, 2, S1, 1, B1, 1;05.03.2025;12.03.2025;1;Степанов Михаил Артёмович;901;Новый
6;S1,notanumber,B1,1;2025-03-06;;2;Неизвестный Клиент;902;Завершен
7;B1,1;06.03.2025;;99;Степанов Михаил Артёмович;903;Новый
`

func writeSources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write(sourceFiles[core.EntityUsers], usersCSV)
	write(sourceFiles[core.EntityPoints], pointsCSV)
	write(sourceFiles[core.EntityOrders], ordersCSV)

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Артикул", "Наименование товара", "Единица измерения", "Цена", "Поставщик", "Производитель", "Категория товара", "Действующая скидка", "Кол-во на складе", "Описание товара", "Фото"},
		{"B1", "Boot", "шт.", 4990, "Kari", "Kari", "Женская обувь", 20, 6, "Зимние ботинки", "1.jpg"},
		{"S1", "Sandal", "шт.", 3244, "Обувь для вас", "Marco Tozzi", "Женская обувь", 10, 13, "", ""},
		{"P1", "Pantofel", "", 2100, "Kari", "Rieker", "Мужская обувь", "N/A", 0, "", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, sourceFiles[core.EntityProducts])))

	return dir
}

func results(report *core.ImportReport) map[string]*core.FileResult {
	out := make(map[string]*core.FileResult, len(report.Files))
	for _, f := range report.Files {
		out[f.Entity] = f
	}
	return out
}

func TestImportAll_Integration(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Reset(t)
	ctx := context.Background()

	dir := writeSources(t)
	svc := core.NewService(db.Pool, core.Options{Dir: dir, Files: sourceFiles})

	report, err := svc.ImportAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, report.Files, 4)
	assert.False(t, report.Failed())

	for _, f := range report.Files {
		assert.Empty(t, f.Error, f.Entity)
		assert.LessOrEqual(t, f.RowsInserted, f.RowsSeen, f.Entity)
	}

	byEntity := results(report)

	t.Run("users", func(t *testing.T) {
		r := byEntity[core.EntityUsers]
		assert.Equal(t, 3, r.RowsSeen)
		assert.Equal(t, 2, r.RowsInserted)
		assert.Equal(t, 1, r.Duplicates)

		p, err := svc.ResolveCredential(ctx, "94d5ous@gmail.com", "uzWC67")
		require.NoError(t, err)
		assert.Equal(t, core.RoleAdmin, p.Role)

		p, err = svc.ResolveCredential(ctx, "1diph5e@tutanota.com", "8ntwUp")
		require.NoError(t, err)
		assert.Equal(t, core.RoleClient, p.Role, "first row for a login wins")
	})

	t.Run("pickup points", func(t *testing.T) {
		r := byEntity[core.EntityPoints]
		assert.Equal(t, 3, r.RowsSeen)
		assert.Equal(t, 2, r.RowsInserted)
		assert.Equal(t, 1, r.Skipped)

		points, err := svc.ListPickupPoints(ctx)
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, core.RefItem{ID: 1, Name: "Main St 5"}, points[0])
		assert.Equal(t, core.RefItem{ID: 2, Name: "Second Ave 9"}, points[1])
	})

	t.Run("products", func(t *testing.T) {
		r := byEntity[core.EntityProducts]
		assert.Equal(t, "xlsx", r.Format)
		assert.Equal(t, 3, r.RowsSeen)
		assert.Equal(t, 3, r.RowsInserted)

		p, err := svc.GetProduct(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, int32(0), p.Discount, "N/A discount stored as 0")
		assert.Equal(t, core.DefaultUnit, p.Unit)

		suppliers, err := svc.ListSuppliers(ctx)
		require.NoError(t, err)
		assert.Len(t, suppliers, 2)
	})

	t.Run("catalog filter and sort", func(t *testing.T) {
		list, err := svc.ListProducts(ctx, core.ProductFilter{Role: core.RoleManager, Sort: core.SortDiscountDesc})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Boot", list[0].Name)
		assert.Equal(t, "Sandal", list[1].Name)

		list, err = svc.ListProducts(ctx, core.ProductFilter{Role: core.RoleManager, Discount: core.DiscountHigh})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Boot", list[0].Name)
		assert.True(t, list[0].HighDiscount)

		list, err = svc.ListProducts(ctx, core.ProductFilter{Role: core.RoleGuest})
		require.NoError(t, err)
		assert.Len(t, list, 2, "guests do not see products out of stock")
	})

	t.Run("orders", func(t *testing.T) {
		r := byEntity[core.EntityOrders]
		assert.Equal(t, 3, r.RowsSeen)
		assert.Equal(t, 2, r.RowsInserted)
		assert.Equal(t, 1, r.Skipped)

		o, err := svc.GetOrder(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, []core.LineItem{{Article: "B1", Quantity: 3}, {Article: "S1", Quantity: 1}}, o.Items)
		assert.Equal(t, "05.03.2025", core.FormatDate(o.OrderDate))
		assert.NotZero(t, o.UserID)

		o, err = svc.GetOrder(ctx, 6)
		require.NoError(t, err)
		assert.Equal(t, []core.LineItem{{Article: "B1", Quantity: 1}}, o.Items)
		assert.Zero(t, o.UserID)
		assert.Equal(t, "Неизвестный Клиент", o.ClientName)

		_, err = svc.GetOrder(ctx, 7)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("history", func(t *testing.T) {
		runs, err := svc.ImportHistory(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, runs, 4)
	})
}

func TestImportAll_Rerun(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Reset(t)
	ctx := context.Background()

	dir := writeSources(t)
	svc := core.NewService(db.Pool, core.Options{Dir: dir, Files: sourceFiles})

	_, err := svc.ImportAll(ctx, "")
	require.NoError(t, err)
	before, err := svc.Stats(ctx)
	require.NoError(t, err)

	report, err := svc.ImportAll(ctx, "")
	require.NoError(t, err)
	byEntity := results(report)

	assert.Zero(t, byEntity[core.EntityUsers].RowsInserted)
	assert.Zero(t, byEntity[core.EntityPoints].RowsInserted)
	assert.Zero(t, byEntity[core.EntityProducts].RowsInserted)
	assert.Equal(t, 3, byEntity[core.EntityProducts].Duplicates)
	assert.Equal(t, 2, byEntity[core.EntityOrders].Duplicates)

	after, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImportAll_ReplaceProducts(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Reset(t)
	ctx := context.Background()

	dir := writeSources(t)
	svc := core.NewService(db.Pool, core.Options{Dir: dir, Files: sourceFiles})
	_, err := svc.ImportAll(ctx, "")
	require.NoError(t, err)

	require.NoError(t, svc.UpsertProduct(ctx, core.ProductInput{
		Article: "B1", Name: "Boot", Price: "1", Discount: "0",
		Category: "Женская обувь", Supplier: "Kari", Manufacturer: "Kari",
	}))

	replacing := core.NewService(db.Pool, core.Options{
		Dir:   dir,
		Files: sourceFiles,
		Import: core.ImportOptions{
			Conflict: map[string]core.ConflictPolicy{core.EntityProducts: core.ConflictReplace},
		},
	})
	report, err := replacing.ImportAll(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, results(report)[core.EntityProducts].RowsInserted)

	p, err := svc.GetProduct(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "4990", p.Price.String())
	assert.Equal(t, int32(20), p.Discount)
}

func TestImportAll_MissingFiles(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Reset(t)

	svc := core.NewService(db.Pool, core.Options{Dir: t.TempDir(), Files: sourceFiles})
	report, err := svc.ImportAll(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, report.Failed())
	for _, f := range report.Files {
		assert.ErrorIs(t, f.Err, core.ErrFileNotFound, f.Entity)
	}
}

func TestImportAll_MixedOrderNumbers(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	db.Reset(t)
	ctx := context.Background()

	dir := writeSources(t)
	mixed := `Номер заказа;Артикул заказа;Дата заказа;Дата доставки;Адрес пункта выдачи;ФИО авторизированного клиента;Код для получения;Статус заказа
;B1,1;05.03.2025;;1;;801;Новый
1000;B1,2;05.03.2025;;1;;802;Новый
;S1,1;05.03.2025;;2;;803;Новый
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, sourceFiles[core.EntityOrders]), []byte(mixed), 0o644))

	svc := core.NewService(db.Pool, core.Options{Dir: dir, Files: sourceFiles})
	report, err := svc.ImportAll(ctx, "")
	require.NoError(t, err)

	r := results(report)[core.EntityOrders]
	assert.Equal(t, 3, r.RowsInserted)
	assert.Zero(t, r.Duplicates)
	assert.Zero(t, r.Skipped)

	o, err := svc.GetOrder(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, "802", o.PickupCode, "explicit number keeps its own row")

	orders, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	codes := make(map[int32]string, len(orders))
	for _, o := range orders {
		codes[o.ID] = o.PickupCode
	}
	assert.Equal(t, map[int32]string{1000: "802", 1001: "801", 1002: "803"}, codes)

	require.NoError(t, svc.UpsertProduct(ctx, core.ProductInput{
		Article: "N1", Name: "New", Price: "1", Discount: "0", Category: "Женская обувь", Supplier: "Kari", Manufacturer: "Kari",
	}))
	id, err := svc.UpsertOrder(ctx, core.OrderInput{
		OrderDate: "2025-03-07", DeliveryDate: "2025-03-10", ClientName: "X", PointID: 1, StatusID: o.StatusID,
	}, []core.LineItem{{Article: "N1", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, int32(1003), id, "sequence continues after the import")
}
