//go:build comparative

package db

import (
	"database/sql"
	"strconv"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nickyhof/TableDB/core"
)

const benchRows = 1000

func setupBenchEngine(b *testing.B) *Engine {
	engine := NewEngine()
	if _, err := engine.CreateTable("departments", []core.Column{
		{Name: "id", Type: core.IntType},
		{Name: "name", Type: core.TextType},
	}); err != nil {
		b.Fatal(err)
	}
	if _, err := engine.CreateTable("employees", []core.Column{
		{Name: "id", Type: core.IntType},
		{Name: "name", Type: core.TextType},
		{Name: "department_id", Type: core.IntType},
		{Name: "salary", Type: core.FloatType},
	}); err != nil {
		b.Fatal(err)
	}
	if _, err := engine.SetPrimaryKey("departments", "id", true); err != nil {
		b.Fatal(err)
	}
	if _, err := engine.AddForeignKey("employees", "department_id", "departments", "id"); err != nil {
		b.Fatal(err)
	}
	for i := 1; i <= 10; i++ {
		if _, err := engine.InsertRow("departments", []any{i, "Dept" + strconv.Itoa(i)}); err != nil {
			b.Fatal(err)
		}
	}
	return engine
}

func setupDuckDB(b *testing.B) *sql.DB {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		b.Fatalf("Failed to open DuckDB: %v", err)
	}
	stmts := []string{
		"CREATE TABLE departments (id INTEGER PRIMARY KEY, name VARCHAR)",
		"CREATE TABLE employees (id INTEGER, name VARCHAR, department_id INTEGER REFERENCES departments(id), salary DOUBLE)",
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			b.Fatalf("Failed to create table: %v", err)
		}
	}
	for i := 1; i <= 10; i++ {
		if _, err := conn.Exec("INSERT INTO departments VALUES (?, ?)", i, "Dept"+strconv.Itoa(i)); err != nil {
			b.Fatalf("Failed to insert: %v", err)
		}
	}
	return conn
}

func BenchmarkTableDB_InsertWithForeignKey(b *testing.B) {
	engine := setupBenchEngine(b)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := engine.InsertRow("employees", []any{i, "User" + strconv.Itoa(i), 1 + i%10, 1000.0}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDuckDB_InsertWithForeignKey(b *testing.B) {
	conn := setupDuckDB(b)
	defer conn.Close()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := conn.Exec("INSERT INTO employees VALUES (?, ?, ?, ?)", i, "User"+strconv.Itoa(i), 1+i%10, 1000.0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTableDB_ValidateAll(b *testing.B) {
	engine := setupBenchEngine(b)
	for i := 0; i < benchRows; i++ {
		_, _ = engine.InsertRow("employees", []any{i, "User" + strconv.Itoa(i), 1 + i%10, 1000.0})
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := engine.ValidateForeignKeys("employees"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDuckDB_ValidateAll(b *testing.B) {
	conn := setupDuckDB(b)
	defer conn.Close()
	for i := 0; i < benchRows; i++ {
		_, _ = conn.Exec("INSERT INTO employees VALUES (?, ?, ?, ?)", i, "User"+strconv.Itoa(i), 1+i%10, 1000.0)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var orphans int
		err := conn.QueryRow(`SELECT COUNT(*) FROM employees e
			LEFT JOIN departments d ON e.department_id = d.id
			WHERE e.department_id <> 0 AND d.id IS NULL`).Scan(&orphans)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTableDB_SnapshotRollback(b *testing.B) {
	engine := setupBenchEngine(b)
	for i := 0; i < benchRows; i++ {
		_, _ = engine.InsertRow("employees", []any{i, "User" + strconv.Itoa(i), 1 + i%10, 1000.0})
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = engine.Begin()
		_, _ = engine.InsertRow("employees", []any{-1, "tmp", 1, 0.0})
		_, _ = engine.Rollback()
	}
}

func BenchmarkDuckDB_SnapshotRollback(b *testing.B) {
	conn := setupDuckDB(b)
	defer conn.Close()
	for i := 0; i < benchRows; i++ {
		_, _ = conn.Exec("INSERT INTO employees VALUES (?, ?, ?, ?)", i, "User"+strconv.Itoa(i), 1+i%10, 1000.0)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		tx, err := conn.Begin()
		if err != nil {
			b.Fatal(err)
		}
		_, _ = tx.Exec("INSERT INTO employees VALUES (-1, 'tmp', 1, 0.0)")
		_ = tx.Rollback()
	}
}
