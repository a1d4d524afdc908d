// Package export writes the result table to the delimited and columnar output files.
package export

// Row is one classified creative. Field order is the column order of every export.
type Row struct {
	Bank string `parquet:"BANK" json:"bank"`
	Text string `parquet:"TEXT" json:"text"`
	Type string `parquet:"TYPE" json:"type"`
	Date string `parquet:"DATE" json:"date"`
}

// Header is the column header shared by every export format.
var Header = []string{"BANK", "TEXT", "TYPE", "DATE"}

func (r Row) record() []string {
	return []string{r.Bank, r.Text, r.Type, r.Date}
}
