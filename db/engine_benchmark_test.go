package db

import (
	"strconv"
	"testing"

	"github.com/nickyhof/TableDB/core"
)

func benchEngine(b *testing.B, rows int) *Engine {
	b.Helper()
	engine := NewEngine()
	_, _ = engine.CreateTable("departments", []core.Column{{Name: "id", Type: core.IntType}})
	_, _ = engine.CreateTable("employees", []core.Column{
		{Name: "id", Type: core.IntType},
		{Name: "department_id", Type: core.IntType},
	})
	_, _ = engine.AddForeignKey("employees", "department_id", "departments", "id")
	for i := 1; i <= 100; i++ {
		_, _ = engine.InsertRow("departments", []any{i})
	}
	for i := 0; i < rows; i++ {
		_, _ = engine.InsertRow("employees", []any{i, 1 + i%100})
	}
	return engine
}

func BenchmarkInsertWithForeignKey(b *testing.B) {
	engine := benchEngine(b, 0)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := engine.InsertRow("employees", []any{i, 1 + i%100}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkValidateForeignKeys(b *testing.B) {
	engine := benchEngine(b, 10000)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = engine.ValidateForeignKeys("employees")
	}
}

func BenchmarkBeginRollback(b *testing.B) {
	for _, rows := range []int{100, 10000} {
		b.Run(strconv.Itoa(rows), func(b *testing.B) {
			engine := benchEngine(b, rows)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = engine.Begin()
				_, _ = engine.Rollback()
			}
		})
	}
}
