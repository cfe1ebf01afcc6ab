package catalog

import "shop-assistant/internal/models"

// defaultProducts is the demo catalog loaded when no other source is configured.
var defaultProducts = []models.Product{
	{ID: "fruit-001", Name: "apple", Price: usd("1.99"), Category: "fruits", Description: "Fresh red apple", Keywords: []string{"apple", "red apple", "fruit"}, InStock: true},
	{ID: "fruit-002", Name: "banana", Price: usd("0.79"), Category: "fruits", Description: "Ripe yellow banana", Keywords: []string{"banana", "yellow banana", "fruit"}, InStock: true},
	{ID: "fruit-003", Name: "orange", Price: usd("1.29"), Category: "fruits", Description: "Juicy orange", Keywords: []string{"orange", "citrus", "fruit"}, InStock: true},
	{ID: "fruit-004", Name: "grapes", Price: usd("3.99"), Category: "fruits", Description: "Fresh grapes", Keywords: []string{"grapes", "grape", "fruit"}, InStock: true},
	{ID: "veg-001", Name: "tomato", Price: usd("2.99"), Category: "vegetables", Description: "Fresh red tomato", Keywords: []string{"tomato", "red tomato", "vegetable"}, InStock: true},
	{ID: "veg-002", Name: "lettuce", Price: usd("2.49"), Category: "vegetables", Description: "Fresh lettuce head", Keywords: []string{"lettuce", "salad", "vegetable", "greens"}, InStock: true},
	{ID: "veg-003", Name: "carrot", Price: usd("1.99"), Category: "vegetables", Description: "Fresh carrots", Keywords: []string{"carrot", "carrots", "vegetable"}, InStock: true},
	{ID: "veg-004", Name: "broccoli", Price: usd("2.79"), Category: "vegetables", Description: "Fresh broccoli", Keywords: []string{"broccoli", "vegetable", "greens"}, InStock: true},
	{ID: "dairy-001", Name: "milk", Price: usd("3.49"), Category: "dairy", Description: "Fresh whole milk", Keywords: []string{"milk", "whole milk", "dairy"}, InStock: true},
	{ID: "dairy-002", Name: "cheese", Price: usd("4.99"), Category: "dairy", Description: "Cheddar cheese block", Keywords: []string{"cheese", "cheddar", "dairy"}, InStock: true},
	{ID: "dairy-003", Name: "yogurt", Price: usd("1.99"), Category: "dairy", Description: "Greek yogurt", Keywords: []string{"yogurt", "greek yogurt", "dairy"}, InStock: true},
	{ID: "dairy-004", Name: "butter", Price: usd("3.99"), Category: "dairy", Description: "Unsalted butter", Keywords: []string{"butter", "dairy"}, InStock: true},
	{ID: "bev-001", Name: "bottle of water", Price: usd("1.49"), Category: "beverages", Description: "Bottled water", Keywords: []string{"water", "bottle of water", "bottled water", "beverage"}, InStock: true},
	{ID: "bev-002", Name: "soda", Price: usd("1.99"), Category: "beverages", Description: "Cola soda", Keywords: []string{"soda", "cola", "soft drink", "beverage"}, InStock: true},
	{ID: "bev-003", Name: "juice", Price: usd("3.99"), Category: "beverages", Description: "Orange juice", Keywords: []string{"juice", "orange juice", "beverage"}, InStock: true},
	{ID: "pantry-001", Name: "bread", Price: usd("2.99"), Category: "pantry", Description: "Whole wheat bread", Keywords: []string{"bread", "loaf", "wheat bread"}, InStock: true},
	{ID: "pantry-002", Name: "cereal", Price: usd("4.49"), Category: "pantry", Description: "Breakfast cereal", Keywords: []string{"cereal", "breakfast", "oats"}, InStock: true},
	{ID: "pantry-003", Name: "pasta", Price: usd("1.99"), Category: "pantry", Description: "Spaghetti pasta", Keywords: []string{"pasta", "spaghetti", "noodles"}, InStock: true},
	{ID: "pantry-004", Name: "rice", Price: usd("3.49"), Category: "pantry", Description: "White rice", Keywords: []string{"rice", "white rice", "grain"}, InStock: true},
	{ID: "meat-001", Name: "chicken", Price: usd("8.99"), Category: "meat", Description: "Fresh chicken breast", Keywords: []string{"chicken", "chicken breast", "meat", "protein"}, InStock: true},
	{ID: "meat-002", Name: "ground beef", Price: usd("6.99"), Category: "meat", Description: "Ground beef", Keywords: []string{"beef", "ground beef", "meat"}, InStock: true},
	{ID: "meat-003", Name: "salmon", Price: usd("12.99"), Category: "meat", Description: "Fresh salmon fillet", Keywords: []string{"salmon", "fish", "seafood"}, InStock: true},
	{ID: "elec-001", Name: "smartphone", Price: usd("699.99"), Category: "electronics", Description: "Latest smartphone", Keywords: []string{"phone", "smartphone", "mobile", "cell phone"}, InStock: true},
	{ID: "elec-002", Name: "laptop", Price: usd("999.99"), Category: "electronics", Description: "Laptop computer", Keywords: []string{"laptop", "computer", "notebook"}, InStock: true},
	{ID: "elec-003", Name: "headphones", Price: usd("79.99"), Category: "electronics", Description: "Wireless headphones", Keywords: []string{"headphones", "earphones", "wireless"}, InStock: true},
	{ID: "office-001", Name: "pen", Price: usd("2.49"), Category: "office", Description: "Ballpoint pen", Keywords: []string{"pen", "ballpoint", "writing"}, InStock: true},
	{ID: "office-002", Name: "notebook", Price: usd("5.99"), Category: "office", Description: "Spiral notebook", Keywords: []string{"notebook", "notepad", "journal"}, InStock: true},
	{ID: "office-003", Name: "book", Price: usd("12.99"), Category: "office", Description: "Paperback book", Keywords: []string{"book", "novel", "paperback"}, InStock: true},
	{ID: "house-001", Name: "coffee mug", Price: usd("8.99"), Category: "household", Description: "Ceramic coffee mug", Keywords: []string{"mug", "coffee mug", "cup"}, InStock: true},
	{ID: "house-002", Name: "plate", Price: usd("6.99"), Category: "household", Description: "Dinner plate", Keywords: []string{"plate", "dish", "dinner plate"}, InStock: true},
	{ID: "house-003", Name: "bowl", Price: usd("4.99"), Category: "household", Description: "Ceramic bowl", Keywords: []string{"bowl", "cereal bowl", "dish"}, InStock: true},
}
