package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// SampleBook is one public domain title used to populate an empty catalog.
type SampleBook struct {
	Title     string
	Author    string
	Category  string
	ISBN      string
	PageCount int
}

// SampleCatalog returns the built-in sample titles.
func SampleCatalog() []SampleBook {
	return []SampleBook{
		{Title: "Meditations", Author: "Marcus Aurelius", Category: "Philosophy", ISBN: "9780140449334", PageCount: 304},
		{Title: "The Republic", Author: "Plato", Category: "Philosophy", ISBN: "9780140455113", PageCount: 416},
		{Title: "Pride and Prejudice", Author: "Jane Austen", Category: "Fiction", ISBN: "9780141439518", PageCount: 480},
		{Title: "Emma", Author: "Jane Austen", Category: "Fiction", ISBN: "9780141439587", PageCount: 544},
		{Title: "Moby-Dick", Author: "Herman Melville", Category: "Fiction", ISBN: "9780142437247", PageCount: 720},
		{Title: "On the Origin of Species", Author: "Charles Darwin", Category: "Science", ISBN: "9780451529060", PageCount: 512},
		{Title: "The Art of War", Author: "Sun Tzu", Category: "Classic", ISBN: "9781599869773", PageCount: 96},
		{Title: "Frankenstein", Author: "Mary Shelley", Category: "Fiction", ISBN: "9780486282114", PageCount: 176},
	}
}

// SeedCatalog inserts books with their authors and categories when the
// catalog is empty. It returns the number of books created; a non-empty
// catalog is left untouched.
func (d *Database) SeedCatalog(ctx context.Context, books []SampleBook) (int, error) {
	created := 0
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&entities.Book{}).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		authors := make(map[string]uint)
		categories := make(map[string]uint)

		for _, sample := range books {
			authorID, ok := authors[sample.Author]
			if !ok {
				author := entities.Author{Name: sample.Author}
				if err := tx.Create(&author).Error; err != nil {
					return fmt.Errorf("failed to create author %q: %w", sample.Author, err)
				}
				authorID = author.ID
				authors[sample.Author] = authorID
			}

			categoryID, ok := categories[sample.Category]
			if !ok {
				category := entities.Category{Name: sample.Category}
				if err := tx.Create(&category).Error; err != nil {
					return fmt.Errorf("failed to create category %q: %w", sample.Category, err)
				}
				categoryID = category.ID
				categories[sample.Category] = categoryID
			}

			book := entities.Book{
				Title:      sample.Title,
				AuthorID:   authorID,
				CategoryID: categoryID,
				ISBN:       sample.ISBN,
				PageCount:  sample.PageCount,
			}
			if err := tx.Omit("Author", "Category").Create(&book).Error; err != nil {
				return fmt.Errorf("failed to create book %q: %w", sample.Title, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
