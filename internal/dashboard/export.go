package dashboard

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// WriteSalesCSV serialises a sales series to CSV.
func WriteSalesCSV(w io.Writer, points []SalesPoint) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Period", "Boxes", "Revenue", "Received"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			point.Label,
			printer.Sprintf("%d", point.Boxes),
			formatAmount(point.Revenue),
			formatAmount(point.Received),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCategoryCSV serialises category totals to CSV.
func WriteCategoryCSV(w io.Writer, totals []CategoryTotal) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Category", "Sold", "Revenue", "Distributed", "Returned", "Damaged"}); err != nil {
		return err
	}
	for _, t := range totals {
		if err := writer.Write([]string{
			t.Title,
			printer.Sprintf("%d", t.BoxesSold),
			formatAmount(t.Revenue),
			printer.Sprintf("%d", t.BoxesDistributed),
			printer.Sprintf("%d", t.BoxesReturned),
			printer.Sprintf("%d", t.BoxesDamaged),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return printer.Sprintf("%.2f", f)
}
