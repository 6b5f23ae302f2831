package model_test

import (
	"testing"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRawTableSample(t *testing.T) {
	Convey("Given a raw table with repeated and blank values", t, func() {
		tbl := &model.RawTable{
			Name:    "Users",
			Columns: []string{"Mail"},
			Rows: []map[string]string{
				{"Mail": "a@x.com"},
				{"Mail": "  "},
				{"Mail": "a@x.com"},
				{"Mail": "b@x.com"},
				{"Mail": "c@x.com"},
				{"Mail": "d@x.com"},
			},
		}

		Convey("Then samples should be distinct, non-blank and in row order", func() {
			So(tbl.Sample("Mail", 3), ShouldResemble, []string{"a@x.com", "b@x.com", "c@x.com"})
		})

		Convey("Then an unknown column should yield no samples", func() {
			So(tbl.Sample("Phone", 3), ShouldBeEmpty)
		})
	})
}

func TestRecord(t *testing.T) {
	Convey("Given a new record", t, func() {
		rec := model.NewRecord("Users", 0)

		Convey("When setting an empty value", func() {
			rec.Set("email", "a@x.com")
			rec.Set("email", "")

			Convey("Then the field should be absent", func() {
				So(rec.Has("email"), ShouldBeFalse)
				So(rec.Get("email"), ShouldEqual, "")
			})
		})

		Convey("When rendering a row with an uncoercible cell", func() {
			rec.Set("user_id", "u1")
			rec.MarkUncoercible("is_active", "maybe")

			Convey("Then valid cells should leave it empty", func() {
				So(rec.Cells([]string{"user_id", "email", "is_active"}), ShouldResemble, []string{"u1", "", ""})
			})

			Convey("Then raw cells should follow the column order and show the raw input", func() {
				So(rec.RawCells([]string{"user_id", "email", "is_active"}), ShouldResemble, []string{"u1", "", "maybe"})
			})
		})
	})
}

func TestRunReport(t *testing.T) {
	Convey("Given a run report with several tables", t, func() {
		report := &model.RunReport{Tables: []model.TableReport{
			{Table: "Users", Status: model.StatusNormalized, Valid: 3, Invalid: 1},
			{Table: "Groups", Status: model.StatusNormalized, Valid: 2},
			{Table: "Misc", Status: model.StatusSkipped},
		}}

		Convey("Then totals should sum the partitions", func() {
			valid, invalid := report.Totals()
			So(valid, ShouldEqual, 5)
			So(invalid, ShouldEqual, 1)
			So(report.Failed(), ShouldBeFalse)
		})

		Convey("Then a failed table should mark the run failed", func() {
			report.Tables = append(report.Tables, model.TableReport{Table: "User Groups", Status: model.StatusFailed})
			So(report.Failed(), ShouldBeTrue)
		})

		Convey("Then outcome text should join violations", func() {
			o := model.Outcome{Violations: []string{"missing identifier", "invalid is_active"}}
			So(o.Text(), ShouldEqual, "missing identifier; invalid is_active")
		})
	})
}
