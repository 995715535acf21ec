package handlers

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"finance-tracker/internal/report"
)

// MonthOption is one entry of the month selector.
type MonthOption struct {
	Value int
	Name  string
}

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Layout
	Report        *report.Report
	Periods       []report.Period
	Months        []MonthOption
	SelectedMonth int
	SelectedYear  int
	SelectedType  string
	ExportCSV     template.URL
	ExportPDF     template.URL
}

var monthOptions = func() []MonthOption {
	months := make([]MonthOption, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, MonthOption{Value: int(m), Name: m.String()})
	}
	return months
}()

// Dashboard renders the totals, expense breakdown and filtered transaction list.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	q := r.URL.Query()
	f := report.ParseFilter(q.Get("month"), q.Get("year"), q.Get("type"))

	var (
		rep     *report.Report
		periods []report.Period
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		rep, err = h.reports.BuildReport(ctx, id.User.ID, f)
		return err
	})
	g.Go(func() error {
		var err error
		periods, err = h.reports.AvailablePeriods(ctx, id.User.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}

	query := exportQuery(f)
	h.render(w, r, http.StatusOK, "dashboard.html", DashboardViewModel{
		Layout:        Layout{Title: "Dashboard", User: id.User},
		Report:        rep,
		Periods:       periods,
		Months:        monthOptions,
		SelectedMonth: f.Month,
		SelectedYear:  f.Year,
		SelectedType:  f.TypeParam(),
		ExportCSV:     template.URL("/export/csv?" + query),
		ExportPDF:     template.URL("/export/pdf?" + query),
	})
}

// exportQuery carries the active filter over to the export links.
func exportQuery(f report.Filter) string {
	v := url.Values{}
	if f.Month > 0 {
		v.Set("month", strconv.Itoa(f.Month))
	}
	if f.Year > 0 {
		v.Set("year", strconv.Itoa(f.Year))
	}
	v.Set("type", f.TypeParam())
	return v.Encode()
}
