package coerce_test

import (
	"testing"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/coerce"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	created  = schema.Field{Name: "created_at", Type: schema.TypeDatetime}
	active   = schema.Field{Name: "is_active", Type: schema.TypeBoolean}
	username = schema.Field{Name: "username", Type: schema.TypeString}
)

func TestCoercer_Datetime(t *testing.T) {
	Convey("Given the default coercer", t, func() {
		c := coerce.New()

		Convey("Then supported layouts should become ISO UTC", func() {
			cases := map[string]string{
				"2024-03-01 14:05:09":       "2024-03-01T14:05:09Z",
				"01/03/2024 14:05:09":       "2024-03-01T14:05:09Z",
				"12/31/2024 23:59:59":       "2024-12-31T23:59:59Z",
				"2024-03-01T14:05:09":       "2024-03-01T14:05:09Z",
				"2024-03-01":                "2024-03-01T00:00:00Z",
				"2024-03-01T14:05:09+02:00": "2024-03-01T12:05:09Z",
				" 2024-03-01 ":              "2024-03-01T00:00:00Z",
			}
			for raw, want := range cases {
				got, ok := c.Value(created, raw)
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, want)
				So(coerce.IsISO(got), ShouldBeTrue)
			}
		})

		Convey("Then day-first should win when both readings parse", func() {
			got, _ := c.Value(created, "02/03/2024 00:00:00")
			So(got, ShouldEqual, "2024-03-02T00:00:00Z")
		})

		Convey("Then garbage should be uncoercible", func() {
			_, ok := c.Value(created, "last tuesday")
			So(ok, ShouldBeFalse)
		})

		Convey("Then empty should be absent, not a failure", func() {
			got, ok := c.Value(created, "   ")
			So(ok, ShouldBeTrue)
			So(got, ShouldBeEmpty)
		})
	})

	Convey("Given a coercer with custom layouts", t, func() {
		c := coerce.New(coerce.WithLayouts([]string{"02.01.2006"}))

		Convey("Then only those layouts should be tried", func() {
			got, ok := c.Value(created, "05.06.2023")
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, "2023-06-05T00:00:00Z")

			_, ok = c.Value(created, "2023-06-05")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestCoercer_Boolean(t *testing.T) {
	Convey("Given boolean-like tokens", t, func() {
		c := coerce.New()

		Convey("Then truthy tokens should become Yes", func() {
			for _, raw := range []string{"true", "YES", "y", "1", "T", "Active", "enabled"} {
				got, ok := c.Value(active, raw)
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, coerce.Yes)
			}
		})

		Convey("Then falsy tokens should become No", func() {
			for _, raw := range []string{"false", "No", "n", "0", "f", "inactive", "Disabled", "deactivated", "Partially  Deactivated"} {
				got, ok := c.Value(active, raw)
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, coerce.No)
			}
		})

		Convey("Then anything else should be uncoercible", func() {
			_, ok := c.Value(active, "maybe")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestCoercer_String(t *testing.T) {
	Convey("Given string values", t, func() {
		c := coerce.New()

		Convey("Then surrounding whitespace should be trimmed", func() {
			got, ok := c.Value(username, "  jdoe \t")
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, "jdoe")
		})
	})
}

func TestCoercer_Record(t *testing.T) {
	Convey("Given a Users row with a skipped column and a bad boolean", t, func() {
		reg, err := schema.Default()
		So(err, ShouldBeNil)
		users, _ := reg.Table("Users")

		columns := []string{"UserID", "Active", "Notes", "Created"}
		mapping := map[string]string{"UserID": "user_id", "Active": "is_active", "Notes": "", "Created": "created_at"}
		row := map[string]string{"UserID": " u1 ", "Active": "maybe", "Notes": "vip", "Created": ""}

		rec, failed := coerce.New().Record(users, mapping, columns, row, 7)

		Convey("Then coerced values should be set and failures remembered", func() {
			So(rec.Table, ShouldEqual, "Users")
			So(rec.Row, ShouldEqual, 7)
			So(rec.Values, ShouldResemble, map[string]string{"user_id": "u1"})
			So(rec.Uncoercible, ShouldResemble, map[string]string{"is_active": "maybe"})
			So(failed, ShouldResemble, []string{"is_active"})
		})
	})
}
