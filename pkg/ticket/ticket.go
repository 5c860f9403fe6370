package ticket

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/phpdave11/gofpdf"
)

// Ticket is the printable view of one confirmed reservation
type Ticket struct {
	BookingID     string
	PassengerName string
	Email         string
	Phone         string
	Origin        string
	Destination   string
	Date          string // DD-MM-YYYY
	DepartureTime string // HH:MM
	ArrivalTime   string // HH:MM
	PlateNumber   string
	Company       string
	SeatNumber    int
	BoardingPoint string
	DroppingPoint string
	OriginalPrice float64
	Discount      float64
	PricePaid     float64
	Currency      string
	PromoCode     string
	PaymentState  string
}

// Filename returns the download name for the ticket
func (t Ticket) Filename() string {
	return fmt.Sprintf("e-ticket-%s.pdf", safeFilenamePart(t.BookingID))
}

// Render builds the e-ticket PDF
func Render(t Ticket) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+t.BookingID, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Booking ID: "+t.BookingID)
	pdf.Ln(10)

	section(pdf, "Journey")
	lines(pdf,
		fmt.Sprintf("Route      : %s - %s", safe(t.Origin, "-"), safe(t.Destination, "-")),
		fmt.Sprintf("Date       : %s", safe(t.Date, "-")),
		fmt.Sprintf("Departure  : %s", safe(t.DepartureTime, "-")),
		fmt.Sprintf("Arrival    : %s", safe(t.ArrivalTime, "-")),
		fmt.Sprintf("Bus        : %s (%s)", safe(t.PlateNumber, "-"), safe(t.Company, "-")),
		fmt.Sprintf("Seat       : %d", t.SeatNumber),
	)

	section(pdf, "Passenger")
	lines(pdf,
		fmt.Sprintf("Name       : %s", safe(t.PassengerName, "-")),
		fmt.Sprintf("Email      : %s", safe(t.Email, "-")),
		fmt.Sprintf("Phone      : %s", safe(t.Phone, "-")),
		fmt.Sprintf("Boarding   : %s", safe(t.BoardingPoint, "-")),
		fmt.Sprintf("Dropping   : %s", safe(t.DroppingPoint, "-")),
	)

	section(pdf, "Fare")
	fare := []string{fmt.Sprintf("Fare       : %s", money(t.OriginalPrice, t.Currency))}
	if t.Discount > 0 {
		fare = append(fare, fmt.Sprintf("Discount   : -%s (%s)", money(t.Discount, t.Currency), safe(t.PromoCode, "promo")))
	}
	fare = append(fare, fmt.Sprintf("Payment    : %s", safe(t.PaymentState, "-")))
	lines(pdf, fare...)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+money(t.PricePaid, t.Currency))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "This e-ticket is valid for one passenger (one seat). Please show it when boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, title)
	pdf.Ln(8)
}

func lines(pdf *gofpdf.Fpdf, rows ...string) {
	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		pdf.Cell(0, 6, row)
		pdf.Ln(6)
	}
	pdf.Ln(4)
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func money(v float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%s %.2f", currency, v)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func safeFilenamePart(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "ticket"
	}
	return s
}
