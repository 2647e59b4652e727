package handler

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"carpool/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	driversSheet = "Drivers"
	ridesSheet   = "Rides"
)

// buildOverviewWorkbook renders the overview as an xlsx file with one sheet
// of driver balances and one of ride rows. Amounts are written as their
// two-decimal strings.
func buildOverviewWorkbook(overview *service.RidesOverview) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(driversSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(ridesSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	// Deleting shifts sheet indexes.
	index, err := f.GetSheetIndex(driversSheet)
	if err != nil {
		return nil, fmt.Errorf("locate sheet: %w", err)
	}
	f.SetActiveSheet(index)

	writeHeader(f, driversSheet, []string{"Driver ID", "Name", "Earned", "Paid out", "Owed", "Earning bookings", "Payouts"})
	writeHeader(f, ridesSheet, []string{"Driver ID", "Ride ID", "Origin", "Destination", "Departure", "Status",
		"Seats total", "Seats booked", "Bookings", "Gross", "Commission", "Driver earnings"})

	driverRow, rideRow := 2, 2
	for _, d := range overview.Drivers {
		s := d.Settlement
		setRow(f, driversSheet, driverRow, d.DriverID, d.DriverName, s.TotalEarned.String(), s.TotalPaidOut.String(),
			s.BalanceOwed.String(), s.EarningBookings, s.PayoutCount)
		driverRow++

		for _, r := range d.Rides {
			setRow(f, ridesSheet, rideRow, d.DriverID, r.Ride.ID, r.Ride.Origin, r.Ride.Destination,
				r.Ride.DepartureAt.Format("02.01.2006 15:04"), string(r.Ride.Status), r.Ride.SeatsTotal,
				r.SeatsBooked, r.Bookings, r.Gross.String(), r.Commission.String(), r.DriverEarnings.String())
			rideRow++
		}
	}

	setRow(f, driversSheet, driverRow+1, "Total", "", "", "", overview.TotalOwed.String())

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, cell, v)
	}
}
