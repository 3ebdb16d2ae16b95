package tables

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/jackc/pgx/v5"
)

func init() {
	core.Register(core.ImportDefinition{
		Info: core.EntityInfo{
			Key:   core.EntityUsers,
			Label: "Users",
			Order: orderUsers,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "role", Synonyms: []string{"Роль сотрудника", "Роль", "Role"}, Type: core.CellIdentifier, Required: true},
			{Name: "full_name", Synonyms: []string{"ФИО", "ФИО сотрудника", "FullName", "Name"}, Type: core.CellText, Required: true},
			{Name: "login", Synonyms: []string{"Логин", "Login", "UserLogin"}, Type: core.CellText, Required: true},
			{Name: "password", Synonyms: []string{"Пароль", "Password", "UserPassword"}, Type: core.CellText, Required: true},
		},
		Import: importUsers,
	})
}

// importUsers creates the roles named in the file, then inserts users.
// Rows without a role are skipped, and an existing login keeps its stored
// user.
func importUsers(ctx context.Context, ic *core.ImportContext) error {
	roles := core.NewReferenceCache(core.RefRole)
	if err := createReferences(ctx, ic, []refField{{field: "role", cache: roles}}); err != nil {
		return err
	}

	const insert = `
		INSERT INTO app_user (full_name, login, password, role_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (login) DO NOTHING`

	return core.InsertRows(ctx, ic, func(ctx context.Context, tx pgx.Tx, i int) (core.RowOutcome, error) {
		roleID, ok, err := roles.Lookup(ctx, tx, ic.Text(i, "role"))
		if err != nil {
			return core.RowSkipped, err
		}
		if !ok {
			return core.RowSkipped, core.SkipRow("role", core.ReasonRequired)
		}

		fields := [3]string{"full_name", "login", "password"}
		var values [3]string
		for j, f := range fields {
			values[j] = ic.Text(i, f)
			if values[j] == "" {
				return core.RowSkipped, core.SkipRow(f, core.ReasonRequired)
			}
		}
		fullName, login, password := values[0], values[1], values[2]

		if ic.Options.HashPassword != nil {
			if password, err = ic.Options.HashPassword(password); err != nil {
				return core.RowSkipped, err
			}
		}

		tag, err := tx.Exec(ctx, insert, fullName, login, password, roleID)
		if err != nil {
			return core.RowSkipped, fmt.Errorf("insert user %s: %w", login, err)
		}
		if tag.RowsAffected() == 0 {
			return core.RowDuplicate, nil
		}
		return core.RowInserted, nil
	})
}
