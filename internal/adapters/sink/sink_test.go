package sink_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/sink"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
)

func record(table string, row int, values map[string]string) *model.Record {
	rec := model.NewRecord(table, row)
	for k, v := range values {
		rec.Set(k, v)
	}
	return rec
}

func partitions() []*model.Partition {
	bad := record("Users", 1, map[string]string{"user_id": "u2"})
	bad.MarkUncoercible("is_active", "maybe")
	return []*model.Partition{
		{
			Table:   "Users",
			Columns: []string{"user_id", "full_name", "is_active"},
			Valid: []*model.Record{
				record("Users", 0, map[string]string{"user_id": "u1", "full_name": strings.Repeat("x", 80), "is_active": "Yes"}),
			},
			Invalid: []model.InvalidRecord{
				{Record: bad, Outcome: model.Outcome{Violations: []string{"incomplete name fields", "invalid is_active"}}},
			},
		},
		{
			Table:   "Groups",
			Columns: []string{"group_id", "group_name"},
			Valid:   []*model.Record{record("Groups", 0, map[string]string{"group_id": "1", "group_name": "Admins"})},
		},
	}
}

func TestWriter(t *testing.T) {
	Convey("Given normalized partitions", t, func() {
		ctx := context.Background()
		dir := filepath.Join(t.TempDir(), "converts")
		w := sink.NewWriter(dir)

		Convey("When writing them", func() {
			files, err := w.Write(ctx, "identities", partitions())
			So(err, ShouldBeNil)

			Convey("Then both workbooks should be named after the input", func() {
				So(files[sink.KindConverted], ShouldEqual, filepath.Join(dir, "converted_identities.xlsx"))
				So(files[sink.KindInvalid], ShouldEqual, filepath.Join(dir, "invalid_records_converted_identities.xlsx"))
			})

			Convey("Then the converted workbook should hold valid rows per table", func() {
				f, err := excelize.OpenFile(files[sink.KindConverted])
				So(err, ShouldBeNil)
				defer f.Close()

				So(f.GetSheetList(), ShouldResemble, []string{"Users", "Groups"})
				rows, err := f.GetRows("Groups")
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, [][]string{{"group_id", "group_name"}, {"1", "Admins"}})

				width, err := f.GetColWidth("Users", "B")
				So(err, ShouldBeNil)
				So(width, ShouldEqual, 50.0)
				width, _ = f.GetColWidth("Users", "A")
				So(width, ShouldEqual, 9.0)
			})

			Convey("Then the invalid workbook should carry raw values and violations", func() {
				f, err := excelize.OpenFile(files[sink.KindInvalid])
				So(err, ShouldBeNil)
				defer f.Close()

				rows, err := f.GetRows("Users")
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, [][]string{
					{"user_id", "full_name", "is_active", "violations"},
					{"u2", "", "maybe", "incomplete name fields; invalid is_active"},
				})
			})
		})

		Convey("When a valid record kept an uncoercible optional field", func() {
			rec := record("Users", 0, map[string]string{"user_id": "u1", "full_name": "Jane Doe"})
			rec.MarkUncoercible("created_at", "garbage")
			files, err := w.Write(ctx, "dates", []*model.Partition{{
				Table:   "Users",
				Columns: []string{"user_id", "full_name", "created_at"},
				Valid:   []*model.Record{rec},
			}})
			So(err, ShouldBeNil)

			Convey("Then the converted cell should be empty", func() {
				f, err := excelize.OpenFile(files[sink.KindConverted])
				So(err, ShouldBeNil)
				defer f.Close()

				rows, err := f.GetRows("Users")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[1], ShouldNotContain, "garbage")
				So(rows[1][:2], ShouldResemble, []string{"u1", "Jane Doe"})
			})
		})

		Convey("When nothing was rejected", func() {
			parts := partitions()
			parts[0].Invalid = nil
			files, err := w.Write(ctx, "clean", parts)

			Convey("Then only the converted workbook should be written", func() {
				So(err, ShouldBeNil)
				So(files, ShouldContainKey, sink.KindConverted)
				So(files, ShouldNotContainKey, sink.KindInvalid)
			})
		})

		Convey("When there is nothing to write", func() {
			files, err := w.Write(ctx, "empty", nil)
			So(err, ShouldBeNil)
			So(files, ShouldBeNil)
		})
	})

	Convey("Given a smaller width cap", t, func() {
		valid, _ := sink.Sheets(partitions())
		f, err := sink.Workbook(valid, 20)
		So(err, ShouldBeNil)
		defer f.Close()

		width, _ := f.GetColWidth("Users", "B")
		So(width, ShouldEqual, 20.0)
	})
}
