package schema_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultRegistry(t *testing.T) {
	Convey("Given the embedded default schema", t, func() {
		reg, err := schema.Default()
		So(err, ShouldBeNil)

		Convey("Then entities should precede relationships in declaration order", func() {
			var entities, relationships []string
			for _, tbl := range reg.Entities() {
				entities = append(entities, tbl.Name)
			}
			for _, tbl := range reg.Relationships() {
				relationships = append(relationships, tbl.Name)
			}
			So(entities, ShouldResemble, []string{"Users", "Groups", "Roles", "Resources"})
			So(relationships, ShouldResemble, []string{
				"User Groups", "User Roles", "Group Roles", "User Resources",
				"Role Resources", "Group Resources", "Group Groups",
			})
		})

		Convey("Then tables should be found regardless of case and spacing", func() {
			tbl, ok := reg.Table("  user   groups ")
			So(ok, ShouldBeTrue)
			So(tbl.Name, ShouldEqual, "User Groups")

			tbl, ok = reg.Table("group_groups")
			So(ok, ShouldBeTrue)
			So(tbl.Name, ShouldEqual, "Group Groups")

			_, ok = reg.Table("Devices")
			So(ok, ShouldBeFalse)
		})

		Convey("Then Users should keep its declared column order", func() {
			users, _ := reg.Table("Users")
			So(users.FieldNames()[:6], ShouldResemble, []string{
				"user_id", "username", "email", "first_name", "last_name", "full_name",
			})
			f, ok := users.Field("is_active")
			So(ok, ShouldBeTrue)
			So(f.Type, ShouldEqual, schema.TypeBoolean)
			So(f.Values, ShouldResemble, []string{"Yes", "No"})
		})

		Convey("Then the rendered document should load to the same tables", func() {
			out, err := reg.Marshal()
			So(err, ShouldBeNil)
			again, err := schema.Load(strings.NewReader(string(out)))
			So(err, ShouldBeNil)
			So(len(again.Tables()), ShouldEqual, len(reg.Tables()))
			users, _ := again.Table("Users")
			So(users.Rules, ShouldHaveLength, 2)
			So(users.Identity.Keys, ShouldResemble, []string{"user_id", "email", "username"})
		})

		Convey("Then untyped fields should default to string", func() {
			groups, _ := reg.Table("Groups")
			f, _ := groups.Field("group_name")
			So(f.Type, ShouldEqual, schema.TypeString)
		})

		Convey("Then relationship endpoints should reference identified entities", func() {
			gg, _ := reg.Table("Group Groups")
			endpoints := gg.Endpoints()
			So(len(endpoints), ShouldEqual, 2)
			for _, ep := range endpoints {
				So(ep.References, ShouldEqual, "Groups")
			}
		})

		Convey("Then the raw document should be available", func() {
			So(string(schema.Raw()), ShouldContainSubstring, "tables:")
		})
	})
}

func TestLoadRejectsInvalidSchemas(t *testing.T) {
	Convey("Given malformed schema documents", t, func() {
		cases := []struct {
			name string
			doc  string
			want error
		}{
			{"empty document", ``, schema.ErrInvalidSchema},
			{"unknown key", "tables:\n  - name: A\n    kind: entity\n    colour: red\n    fields: [{name: a}]\n", schema.ErrInvalidSchema},
			{"unknown kind", "tables:\n  - name: A\n    kind: view\n    fields: [{name: a}]\n", schema.ErrInvalidSchema},
			{"duplicate field", "tables:\n  - name: A\n    kind: entity\n    fields: [{name: a}, {name: a}]\n", schema.ErrDuplicateField},
			{"duplicate table", "tables:\n  - {name: A, kind: entity, fields: [{name: a}]}\n  - {name: a, kind: entity, fields: [{name: a}]}\n", schema.ErrDuplicateTable},
			{"unknown type", "tables:\n  - name: A\n    kind: entity\n    fields: [{name: a, type: integer}]\n", schema.ErrInvalidSchema},
			{"unknown derivation source", "tables:\n  - name: A\n    kind: entity\n    fields: [{name: a, derive: {kind: copy, from: [b]}}]\n", schema.ErrInvalidSchema},
			{"dangling reference", "tables:\n  - name: R\n    kind: relationship\n    fields: [{name: a, references: Missing}]\n", schema.ErrInvalidSchema},
			{"rule on unknown field", "tables:\n  - name: A\n    kind: entity\n    rules: [{any_of: [x], message: m}]\n    fields: [{name: a}]\n", schema.ErrInvalidSchema},
		}

		for _, tc := range cases {
			Convey("When loading a schema with "+tc.name, func() {
				_, err := schema.Load(strings.NewReader(tc.doc))

				Convey("Then it should be rejected", func() {
					So(errors.Is(err, tc.want), ShouldBeTrue)
				})
			})
		}
	})
}

func TestLoadFile(t *testing.T) {
	Convey("Given a schema file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "schema.yaml")
		doc := `
tables:
  - name: Devices
    kind: entity
    identity: {canonical: [device_id], keys: [device_id, hostname]}
    fields:
      - {name: device_id, derive: {kind: copy, from: [hostname]}}
      - {name: hostname, synonyms: [host]}
  - name: Device Owners
    kind: relationship
    fields:
      - {name: device_id, references: Devices}
`
		So(os.WriteFile(path, []byte(doc), 0o600), ShouldBeNil)

		reg, err := schema.LoadFile(path)

		Convey("Then it should load the custom tables", func() {
			So(err, ShouldBeNil)
			tbl, ok := reg.Table("devices")
			So(ok, ShouldBeTrue)
			So(tbl.IsEntity(), ShouldBeTrue)
			So(tbl.Has("hostname"), ShouldBeTrue)
			So(tbl.Has("serial"), ShouldBeFalse)
		})
	})

	Convey("Given a missing schema file", t, func() {
		_, err := schema.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))

		Convey("Then an error should be returned", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
