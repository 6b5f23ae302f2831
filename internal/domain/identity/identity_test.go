package identity_test

import (
	"errors"
	"testing"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/identity"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
	. "github.com/smartystreets/goconvey/convey"
)

func record(table string, values map[string]string) *model.Record {
	rec := model.NewRecord(table, 0)
	for k, v := range values {
		rec.Set(k, v)
	}
	return rec
}

func TestBuild(t *testing.T) {
	Convey("Given normalized Users records", t, func() {
		reg, err := schema.Default()
		So(err, ShouldBeNil)
		users, _ := reg.Table("Users")

		records := []*model.Record{
			record("Users", map[string]string{"user_id": "u1", "username": "jdoe", "email": "Jane@X.com"}),
			record("Users", map[string]string{"username": "bob", "email": "bob@x.com"}),
			record("Users", map[string]string{"email": "carol@x.com"}),
			record("Users", map[string]string{"user_id": "u9", "email": "jane@x.com"}),
			record("Users", map[string]string{"first_name": "Nobody"}),
		}
		ix, err := identity.Build(users, records)
		So(err, ShouldBeNil)

		Convey("Then only identified records should be counted", func() {
			So(ix.Len(), ShouldEqual, 4)
			So(ix.Table(), ShouldEqual, "Users")
		})

		Convey("Then user_id, email and username should resolve to the canonical id", func() {
			id, ok := ix.Resolve("u1")
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "u1")

			id, _ = ix.Resolve(" JANE@x.com ")
			So(id, ShouldEqual, "u1")

			id, _ = ix.Resolve("jdoe")
			So(id, ShouldEqual, "u1")
		})

		Convey("Then the canonical id should fall back to username, then email", func() {
			id, _ := ix.Resolve("bob@x.com")
			So(id, ShouldEqual, "bob")

			id, _ = ix.Resolve("carol@x.com")
			So(id, ShouldEqual, "carol@x.com")
		})

		Convey("Then the first record carrying a key should win", func() {
			id, _ := ix.Resolve("jane@x.com")
			So(id, ShouldEqual, "u1")
		})

		Convey("Then unknown and blank values should not resolve", func() {
			_, ok := ix.Resolve("ghost")
			So(ok, ShouldBeFalse)
			_, ok = ix.Resolve("  ")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a table without identity", t, func() {
		reg, _ := schema.Default()
		ug, _ := reg.Table("User Groups")
		_, err := identity.Build(ug, nil)

		Convey("Then Build should fail", func() {
			So(errors.Is(err, identity.ErrNoIdentity), ShouldBeTrue)
		})
	})
}

func TestRegistryResolve(t *testing.T) {
	Convey("Given indexed Users and Groups", t, func() {
		reg, err := schema.Default()
		So(err, ShouldBeNil)
		users, _ := reg.Table("Users")
		groups, _ := reg.Table("Groups")
		userGroups, _ := reg.Table("User Groups")

		ux, _ := identity.Build(users, []*model.Record{
			record("Users", map[string]string{"user_id": "a@x.com", "username": "a@x.com", "email": "a@x.com"}),
			record("Users", map[string]string{"user_id": "u2", "username": "bee", "email": "b@x.com"}),
		})
		gx, _ := identity.Build(groups, []*model.Record{
			record("Groups", map[string]string{"group_id": "1", "group_name": "Admins"}),
			record("Groups", map[string]string{"group_id": "G7", "group_name": "Ops"}),
		})

		ids := identity.NewRegistry()
		So(ids.Add(ux), ShouldBeTrue)
		So(ids.Add(gx), ShouldBeTrue)
		So(ids.Add(ux), ShouldBeFalse)

		Convey("When relationship rows reference by email, username, name and id", func() {
			rows := []*model.Record{
				record("User Groups", map[string]string{"user_id": "A@x.com", "group_id": "Admins"}),
				record("User Groups", map[string]string{"user_id": "bee", "group_id": "g7"}),
				record("User Groups", map[string]string{"user_id": "ghost", "group_id": "Nobody"}),
				record("User Groups", map[string]string{"group_id": "1"}),
			}
			orphans, err := ids.Resolve(userGroups, rows)

			Convey("Then endpoints should be rewritten to canonical ids", func() {
				So(err, ShouldBeNil)
				So(rows[0].Get("user_id"), ShouldEqual, "a@x.com")
				So(rows[0].Get("group_id"), ShouldEqual, "1")
				So(rows[1].Get("user_id"), ShouldEqual, "u2")
				So(rows[1].Get("group_id"), ShouldEqual, "G7")
			})

			Convey("Then unmatched values should pass through as orphans", func() {
				So(orphans, ShouldEqual, 2)
				So(rows[2].Get("user_id"), ShouldEqual, "ghost")
				So(rows[2].Orphans, ShouldResemble, []string{"user_id", "group_id"})
			})

			Convey("Then absent endpoints should stay absent", func() {
				So(rows[3].Has("user_id"), ShouldBeFalse)
				So(rows[3].Orphans, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a relationship whose entity was never indexed", t, func() {
		reg, _ := schema.Default()
		userRoles, _ := reg.Table("User Roles")
		users, _ := reg.Table("Users")
		ux, _ := identity.Build(users, nil)

		ids := identity.NewRegistry()
		ids.Add(ux)
		rows := []*model.Record{record("User Roles", map[string]string{"user_id": "u1", "role_id": "Auditor"})}

		_, err := ids.Resolve(userRoles, rows)

		Convey("Then resolution should be refused without touching records", func() {
			So(errors.Is(err, identity.ErrNotIndexed), ShouldBeTrue)
			So(ids.Missing(userRoles), ShouldResemble, []string{"Roles"})
			So(rows[0].Orphans, ShouldBeEmpty)
		})
	})
}
