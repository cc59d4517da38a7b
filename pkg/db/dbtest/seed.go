package dbtest

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db/models"
)

// Ingredient inserts an ingredient with the given stock and threshold.
func Ingredient(t testing.TB, db *gorm.DB, name string, stock, minThreshold int) models.Ingredient {
	t.Helper()
	row := models.Ingredient{Name: name, Stock: stock, MinThreshold: minThreshold}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed ingredient %s: %v", name, err)
	}
	return row
}

// MenuItem inserts a menu item priced at price with recipe ingredientID -> amount.
func MenuItem(t testing.TB, db *gorm.DB, name, price string, active bool, recipe map[int64]int) models.MenuItem {
	t.Helper()
	row := models.MenuItem{Name: name, Price: decimal.RequireFromString(price), Active: active}
	if err := db.Omit("Recipe").Create(&row).Error; err != nil {
		t.Fatalf("seed menu item %s: %v", name, err)
	}
	for ingredientID, amount := range recipe {
		line := models.MenuItemIngredient{MenuItemID: row.ID, IngredientID: ingredientID, Amount: amount}
		if err := db.Create(&line).Error; err != nil {
			t.Fatalf("seed recipe line for %s: %v", name, err)
		}
		row.Recipe = append(row.Recipe, line)
	}
	return row
}

// Customer inserts a loyalty account with the given balances.
func Customer(t testing.TB, db *gorm.DB, email string, current, total int64) models.Customer {
	t.Helper()
	row := models.Customer{Name: email, Email: email, CurrentPoints: current, TotalPoints: total}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed customer %s: %v", email, err)
	}
	return row
}

// Employee inserts an employee.
func Employee(t testing.TB, db *gorm.DB, name string, active bool) models.Employee {
	t.Helper()
	row := models.Employee{Name: name, Position: "cashier", Active: active}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed employee %s: %v", name, err)
	}
	return row
}

// Stock reads the current stock of an ingredient.
func Stock(t testing.TB, db *gorm.DB, ingredientID int64) int {
	t.Helper()
	var row models.Ingredient
	if err := db.First(&row, ingredientID).Error; err != nil {
		t.Fatalf("load ingredient %d: %v", ingredientID, err)
	}
	return row.Stock
}

// Count returns the number of rows stored for model.
func Count(t testing.TB, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
