package export

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"orderdesk/internal"
)

// ReviewRow is one line of the match review sheet the watcher produces:
// the extracted item next to its chosen catalog name and the runner-up.
type ReviewRow struct {
	Name            string
	Quantity        float64
	Price           float64
	Total           float64
	ChosenMatch     string
	ChosenScore     float64
	RunnerUpMatch   string
	RunnerUpScore   float64
	CandidatesFound int
}

func ReviewRows(items []internal.LineItem, results map[string][]internal.MatchCandidate, selections map[string]string) []ReviewRow {
	out := make([]ReviewRow, 0, len(items))
	for _, item := range items {
		row := ReviewRow{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
			Total:    item.Total,
		}
		candidates := results[item.Name]
		row.CandidatesFound = len(candidates)
		if chosen, ok := selections[item.Name]; ok {
			row.ChosenMatch = chosen
			for _, c := range candidates {
				if c.Name == chosen {
					row.ChosenScore = c.Score
					break
				}
			}
		}
		if len(candidates) > 1 {
			row.RunnerUpMatch = candidates[1].Name
			row.RunnerUpScore = candidates[1].Score
		}
		out = append(out, row)
	}
	return out
}

func ReviewToXLSX(rows []ReviewRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"name", "quantity", "price", "total",
		"chosen_match", "chosen_score", "runner_up", "runner_up_score", "candidates_found",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.Name)
		set(2, row.Quantity)
		set(3, row.Price)
		set(4, row.Total)
		set(5, row.ChosenMatch)
		set(6, row.ChosenScore)
		set(7, row.RunnerUpMatch)
		set(8, row.RunnerUpScore)
		set(9, row.CandidatesFound)
	}

	return saveAs(f, outputPath)
}

func OrdersToXLSX(orders []internal.OrderRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"id", "customer_name", "name", "quantity", "price", "total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, o := range orders {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, o.ID)
		set(2, o.CustomerName)
		set(3, o.Name)
		set(4, o.Quantity)
		set(5, o.Price)
		set(6, o.Total)
	}

	return saveAs(f, outputPath)
}

func saveAs(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
