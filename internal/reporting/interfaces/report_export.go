package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	reporting "gridledger/internal/reporting/domain"
)

// BuildReconciliationPDF renders the monthly reconciliation report.
func BuildReconciliationPDF(subject string, rows []reporting.MonthlyEnergyMetrics, slots []reporting.MonthlySlotSummary) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Banking Reconciliation Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Subject: %s", subject))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(22, 6, "Month", "1", 0, "C", false, 0, "")
	pdf.CellFormat(38, 6, "Settled w/o banking", "1", 0, "C", false, 0, "")
	pdf.CellFormat(38, 6, "Settled w/ banking", "1", 0, "C", false, 0, "")
	pdf.CellFormat(38, 6, "Grid w/o banking", "1", 0, "C", false, 0, "")
	pdf.CellFormat(38, 6, "Grid w/ banking", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Banking savings", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Grid reduction", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		pdf.CellFormat(22, 6, row.Month, "1", 0, "C", false, 0, "")
		pdf.CellFormat(38, 6, fmt.Sprintf("%.3f", row.SettledWithoutBanking), "1", 0, "R", false, 0, "")
		pdf.CellFormat(38, 6, fmt.Sprintf("%.3f", row.SettledWithBanking), "1", 0, "R", false, 0, "")
		pdf.CellFormat(38, 6, fmt.Sprintf("%.3f", row.GridConsumptionWithoutBanking), "1", 0, "R", false, 0, "")
		pdf.CellFormat(38, 6, fmt.Sprintf("%.3f", row.GridConsumptionWithBanking), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", row.BankingSavings), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", row.GridReduction), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(slots) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(22, 6, "Month", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Slot", "1", 0, "C", false, 0, "")
		pdf.CellFormat(34, 6, "Surplus gen", "1", 0, "C", false, 0, "")
		pdf.CellFormat(34, 6, "Surplus demand", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Matched", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Intra", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Inter", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, slot := range slots {
			label := slot.Slot
			if slot.SlotWindow != "" {
				label = fmt.Sprintf("%s (%s)", slot.Slot, slot.SlotWindow)
			}
			pdf.CellFormat(22, 6, slot.Month, "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, label, "1", 0, "L", false, 0, "")
			pdf.CellFormat(34, 6, fmt.Sprintf("%.3f", slot.SurplusGenerationSum), "1", 0, "R", false, 0, "")
			pdf.CellFormat(34, 6, fmt.Sprintf("%.3f", slot.SurplusDemandSum), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", slot.MatchedSettledSum), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", slot.IntraSettlement), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", slot.InterSettlement), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReconciliationXLSX renders the monthly reconciliation workbook:
// one sheet of monthly metrics, one of per-slot audit sums.
func BuildReconciliationXLSX(subject string, rows []reporting.MonthlyEnergyMetrics, slots []reporting.MonthlySlotSummary) ([]byte, error) {
	f := excelize.NewFile()
	monthlySheet := "monthly"
	slotSheet := "slots"
	f.SetSheetName("Sheet1", monthlySheet)
	if _, err := f.NewSheet(slotSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(monthlySheet, "A1", "Banking Reconciliation Report")
	_ = f.SetCellValue(monthlySheet, "A2", "Subject")
	_ = f.SetCellValue(monthlySheet, "B2", subject)

	monthlyHeader := []string{
		"Month",
		"Settled w/o banking (kWh)",
		"Settled w/ banking (kWh)",
		"Grid w/o banking (kWh)",
		"Grid w/ banking (kWh)",
		"Banking savings (kWh)",
		"Grid reduction (kWh)",
		"Total benefit (kWh)",
	}
	for col, title := range monthlyHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 4)
		_ = f.SetCellValue(monthlySheet, cell, title)
	}
	for i, row := range rows {
		values := []interface{}{
			row.Month,
			row.SettledWithoutBanking,
			row.SettledWithBanking,
			row.GridConsumptionWithoutBanking,
			row.GridConsumptionWithBanking,
			row.BankingSavings,
			row.GridReduction,
			row.TotalBenefit,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+5)
			_ = f.SetCellValue(monthlySheet, cell, value)
		}
	}

	slotHeader := []string{
		"Month",
		"Slot",
		"Window",
		"Surplus demand (kWh)",
		"Surplus generation (kWh)",
		"Matched settled (kWh)",
		"Gen after intra (kWh)",
		"Demand after intra (kWh)",
		"Intra settlement (kWh)",
		"Gen after inter (kWh)",
		"Demand after inter (kWh)",
		"Inter settlement (kWh)",
	}
	for col, title := range slotHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(slotSheet, cell, title)
	}
	for i, slot := range slots {
		values := []interface{}{
			slot.Month,
			slot.Slot,
			slot.SlotWindow,
			slot.SurplusDemandSum,
			slot.SurplusGenerationSum,
			slot.MatchedSettledSum,
			slot.SurplusGenerationAfterIntra,
			slot.SurplusDemandAfterIntra,
			slot.IntraSettlement,
			slot.SurplusGenerationAfterInter,
			slot.SurplusDemandAfterInter,
			slot.InterSettlement,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(slotSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
