/*
Package report renders downloadable workbooks from persisted analysis
results. The accounting side consumes these directly, so layout and
Japanese labels follow their monthly report format.
*/
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/arakawak223/stdcost/jpfmt"
	"github.com/arakawak223/stdcost/variance"
)

// elementLabels maps cost elements to report labels.
var elementLabels = map[string]string{
	"crude_product": "原料品費",
	"packaging":     "包装材料費",
	"labor":         "労務費",
	"overhead":      "製造経費",
	"outsourcing":   "外注加工費",
}

// WriteVarianceSummary writes the variance summary workbook to w.
func WriteVarianceSummary(w io.Writer, year, month int, summary *variance.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "差異分析"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "標準原価差異分析表")
	f.SetCellValue(sheet, "A2", "対象期間")
	f.SetCellValue(sheet, "B2", jpfmt.FiscalPeriod(year, month))
	f.SetCellValue(sheet, "A3", "対象製品数")
	f.SetCellValue(sheet, "B3", summary.ProductCount)
	f.SetCellValue(sheet, "A4", "閾値超過件数")
	f.SetCellValue(sheet, "B4", summary.FlaggedCount)

	cols := []string{"原価要素", "標準原価", "実際原価", "差異", "差異率", "閾値超過"}
	for i, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 6)
		f.SetCellValue(sheet, cell, c)
	}
	f.SetCellStyle(sheet, "A6", "F6", header)

	row := 7
	for _, es := range summary.Elements {
		label, ok := elementLabels[string(es.Element)]
		if !ok {
			label = string(es.Element)
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), label)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), jpfmt.Currency(es.TotalStandard))
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), jpfmt.Currency(es.TotalActual))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), jpfmt.Currency(es.TotalVariance))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), jpfmt.Percent(es.AverageVariancePercent))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), es.FlaggedCount)
		row++
	}

	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "合計")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), jpfmt.Currency(summary.TotalStandard))
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), jpfmt.Currency(summary.TotalActual))
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row), jpfmt.Currency(summary.TotalVariance))
	f.SetCellValue(sheet, fmt.Sprintf("E%d", row), jpfmt.Percent(summary.AverageVariancePercent))
	f.SetCellValue(sheet, fmt.Sprintf("F%d", row), summary.FlaggedCount)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), header)

	f.SetColWidth(sheet, "A", "F", 16)

	return f.Write(w)
}
