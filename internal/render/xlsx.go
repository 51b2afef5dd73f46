package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	priceSheet = "Price List"
	rulesSheet = "Rules"
)

func priceFormat(c models.Currency) string {
	if c == models.CurrencyEuro {
		return `#,##0.00 "€"`
	}
	return `"$"#,##0.00`
}

// renderXLSX writes the tiers as a price list workbook with rules and links on a
// second sheet
func renderXLSX(doc models.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(priceSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{resolvePalette(doc.Colors).accent},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	numFmt := priceFormat(doc.Currency)
	priceStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create price style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create wrap style: %w", err)
	}

	title := "Commissions"
	if doc.ArtistName != "" {
		title = doc.ArtistName + "'s Commissions"
	}
	if err := f.SetCellValue(priceSheet, "A1", title); err != nil {
		return nil, err
	}

	headers := []string{"Tier", "Price", "Details", "Image"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		if err := f.SetCellValue(priceSheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
	}
	if err := f.SetCellStyle(priceSheet, "A3", "D3", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, t := range doc.Tiers {
		row := i + 4
		values := []any{t.Name, t.Price, strings.Join(t.Info, "\n"), t.Image}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(priceSheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
		priceCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := f.SetCellStyle(priceSheet, priceCell, priceCell, priceStyle); err != nil {
			return nil, err
		}
		detailCell, _ := excelize.CoordinatesToCellName(3, row)
		if err := f.SetCellStyle(priceSheet, detailCell, detailCell, wrapStyle); err != nil {
			return nil, err
		}
	}

	for col, width := range map[string]float64{"A": 24, "B": 14, "C": 48, "D": 32} {
		if err := f.SetColWidth(priceSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetPanes(priceSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      3,
		TopLeftCell: "A4",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := writeRulesSheet(f, doc); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRulesSheet(f *excelize.File, doc models.Document) error {
	if _, err := f.NewSheet(rulesSheet); err != nil {
		return fmt.Errorf("failed to create rules sheet: %w", err)
	}
	row := 1
	set := func(col int, v any) error {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		return f.SetCellValue(rulesSheet, cell, v)
	}

	for i, r := range doc.Rules {
		if err := set(1, i+1); err != nil {
			return err
		}
		if err := set(2, r); err != nil {
			return err
		}
		row++
	}

	row++
	for _, lt := range []models.LinkType{models.LinkTwitter, models.LinkWebsite, models.LinkDiscord, models.LinkInstagram} {
		v := doc.Links.Get(lt)
		if v == "" {
			continue
		}
		if err := set(1, string(lt)); err != nil {
			return err
		}
		if err := set(2, v); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(rulesSheet, "B", "B", 60)
}
