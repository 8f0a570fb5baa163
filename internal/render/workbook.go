package render

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"deckgen/internal/domain"
)

const chartSheet = "Chart"

var excelChartTypes = map[domain.ChartType]excelize.ChartType{
	domain.ChartTypeBar:     excelize.Col,
	domain.ChartTypeLine:    excelize.Line,
	domain.ChartTypePie:     excelize.Pie,
	domain.ChartTypeArea:    excelize.Area,
	domain.ChartTypeScatter: excelize.Scatter,
}

// chartWorkbook writes the chart data of one slide as a sheet plus a native
// chart object, so the numbers stay editable after download.
func chartWorkbook(c domain.Chart) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(chartSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	if err := f.SetCellValue(chartSheet, "A1", "Category"); err != nil {
		return nil, err
	}
	for i, cat := range c.Categories {
		if err := f.SetCellValue(chartSheet, cellName(1, i+2), cat); err != nil {
			return nil, err
		}
	}

	n := len(c.Categories)
	var series []excelize.ChartSeries
	for j, s := range c.Series {
		col := j + 2
		if err := f.SetCellValue(chartSheet, cellName(col, 1), s.Name); err != nil {
			return nil, err
		}
		for i, v := range s.Values {
			if err := f.SetCellValue(chartSheet, cellName(col, i+2), v); err != nil {
				return nil, err
			}
		}
		colName, _ := excelize.ColumnNumberToName(col)
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$1", chartSheet, colName),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", chartSheet, n+1),
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", chartSheet, colName, colName, n+1),
		})
	}

	if n > 0 && len(series) > 0 {
		kind, ok := excelChartTypes[c.Type]
		if !ok {
			kind = excelize.Col
		}
		if err := f.AddChart(chartSheet, cellName(len(c.Series)+3, 2), &excelize.Chart{
			Type:   kind,
			Series: series,
		}); err != nil {
			return nil, fmt.Errorf("add chart: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
