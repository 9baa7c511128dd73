// Package autogen derives revision bodies from the difference between
// the model registry and the live database schema.
package autogen

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Diff compares the registered models against the live schema and
// returns paired upgrade and downgrade statements. Both lists are empty
// when no structural difference is detected; that is not an error but
// usually means the registry is incomplete.
func Diff(ctx context.Context, db *gorm.DB, models []any) ([]string, []string, error) {
	d := &differ{
		db:       db.WithContext(ctx),
		migrator: db.WithContext(ctx).Migrator(),
		cache:    &sync.Map{},
	}
	for _, mdl := range models {
		if err := d.diffModel(mdl); err != nil {
			return nil, nil, err
		}
	}
	// Downgrade statements undo the upgrade in reverse order.
	up := make([]string, 0, len(d.pairs))
	down := make([]string, 0, len(d.pairs))
	for _, p := range d.pairs {
		up = append(up, p.up)
	}
	for i := len(d.pairs) - 1; i >= 0; i-- {
		down = append(down, d.pairs[i].down)
	}
	return up, down, nil
}

type pair struct {
	up   string
	down string
}

type differ struct {
	db       *gorm.DB
	migrator gorm.Migrator
	cache    *sync.Map
	pairs    []pair
}

func (d *differ) diffModel(mdl any) error {
	sch, err := schema.Parse(mdl, d.cache, d.db.NamingStrategy)
	if err != nil {
		return fmt.Errorf("autogen: couldn't parse model %T: %w", mdl, err)
	}
	if !d.migrator.HasTable(mdl) {
		d.createTable(sch)
		return nil
	}
	return d.diffColumns(mdl, sch)
}

func (d *differ) createTable(sch *schema.Schema) {
	var cols []string
	for _, field := range sch.Fields {
		if field.DBName == "" || field.IgnoreMigration {
			continue
		}
		cols = append(cols, fmt.Sprintf("%s %s", d.quote(field.DBName), d.migrator.FullDataTypeOf(field).SQL))
	}
	if len(sch.PrimaryFieldDBNames) > 0 {
		quoted := make([]string, len(sch.PrimaryFieldDBNames))
		for i, name := range sch.PrimaryFieldDBNames {
			quoted[i] = d.quote(name)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	d.pairs = append(d.pairs, pair{
		up:   fmt.Sprintf("CREATE TABLE %s (%s)", d.quote(sch.Table), strings.Join(cols, ", ")),
		down: fmt.Sprintf("DROP TABLE %s", d.quote(sch.Table)),
	})

	indexes := sch.ParseIndexes()
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		idx := indexes[name]
		fields := make([]string, 0, len(idx.Fields))
		for _, opt := range idx.Fields {
			fields = append(fields, d.quote(opt.DBName))
		}
		unique := ""
		if strings.EqualFold(idx.Class, "UNIQUE") {
			unique = "UNIQUE "
		}
		d.pairs = append(d.pairs, pair{
			up:   fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, d.quote(idx.Name), d.quote(sch.Table), strings.Join(fields, ", ")),
			down: d.dropIndex(sch.Table, idx.Name),
		})
	}
}

func (d *differ) diffColumns(mdl any, sch *schema.Schema) error {
	columns, err := d.migrator.ColumnTypes(mdl)
	if err != nil {
		return fmt.Errorf("autogen: couldn't inspect columns of %s: %w", sch.Table, err)
	}
	live := make(map[string]gorm.ColumnType, len(columns))
	for _, col := range columns {
		live[col.Name()] = col
	}
	declared := make(map[string]bool)

	// Columns declared on the model but absent from the live table.
	for _, field := range sch.Fields {
		if field.DBName == "" || field.IgnoreMigration {
			continue
		}
		declared[field.DBName] = true
		if _, ok := live[field.DBName]; ok {
			continue
		}
		d.pairs = append(d.pairs, pair{
			up:   fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.quote(sch.Table), d.quote(field.DBName), d.migrator.FullDataTypeOf(field).SQL),
			down: fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.quote(sch.Table), d.quote(field.DBName)),
		})
	}

	// Columns present in the live table but no longer declared. The
	// downgrade restores them with a best-effort type read back from
	// the live schema.
	var removed []string
	for name := range live {
		if !declared[name] {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	for _, name := range removed {
		d.pairs = append(d.pairs, pair{
			up:   fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.quote(sch.Table), d.quote(name)),
			down: fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.quote(sch.Table), d.quote(name), columnType(live[name])),
		})
	}
	return nil
}

func columnType(col gorm.ColumnType) string {
	typ := col.DatabaseTypeName()
	if length, ok := col.Length(); ok && length > 0 {
		typ = fmt.Sprintf("%s(%d)", typ, length)
	}
	return typ
}

func (d *differ) quote(name string) string {
	if d.db.Dialector.Name() == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func (d *differ) dropIndex(table, name string) string {
	if d.db.Dialector.Name() == "mysql" {
		return fmt.Sprintf("DROP INDEX %s ON %s", d.quote(name), d.quote(table))
	}
	return fmt.Sprintf("DROP INDEX %s", d.quote(name))
}
