package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"PVResonance/internal/domain/models"
)

var csvHeader = []string{"date_time", "date", "open", "close", "factor", "regime", "raw_sig", "sig", "pos"}

// WriteCSV writes points one row per bar. Bars without a
// factor leave the factor column empty.
func WriteCSV(w io.Writer, points []models.SignalPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range points {
		factor := ""
		if p.FactorOK {
			factor = strconv.FormatFloat(p.Factor, 'f', -1, 64)
		}
		row := []string{
			p.DateTime.Format(time.DateTime),
			strconv.Itoa(p.Date),
			strconv.FormatFloat(p.Open, 'f', -1, 64),
			strconv.FormatFloat(p.Close, 'f', -1, 64),
			factor,
			p.Regime.String(),
			strconv.Itoa(int(p.RawSig)),
			strconv.Itoa(int(p.Sig)),
			strconv.Itoa(p.Pos),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
