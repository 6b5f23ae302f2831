package service_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/safer-strategy/data-transformation-tool/internal/app"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

func TestCheck(t *testing.T) {
	Convey("Given a converted dataset", t, func() {
		reg, err := schema.Default()
		So(err, ShouldBeNil)

		Convey("When every row satisfies the rules", func() {
			report := service.Check(reg, &model.Dataset{Tables: []*model.RawTable{
				table("Groups", "group_id,group_name,group_description", "1,Admins,Admins"),
				table("User Groups", "user_id,group_id,violations", "a@x.com,1,"),
			}})

			Convey("Then it should pass without warnings", func() {
				So(report.OK(), ShouldBeTrue)
				So(report.Warnings, ShouldBeEmpty)
			})
		})

		Convey("When rows break the rules", func() {
			report := service.Check(reg, &model.Dataset{Tables: []*model.RawTable{
				table("Users", "user_id,first_name,last_name,full_name,is_active,created_at",
					"u1,Ann,Lee,Ann Lee,Yes,2024-01-02T03:04:05Z",
					"u2,Bob,,,maybe,2024-01-02"),
				table("User Groups", "user_id,group_id", "u1,"),
			}})

			Convey("Then each violation should be reported with its sheet row", func() {
				So(report.OK(), ShouldBeFalse)
				var lines []string
				for _, f := range report.Errors {
					lines = append(lines, f.String())
				}
				So(lines, ShouldResemble, []string{
					"Users row 3: incomplete name fields",
					"Users row 3: invalid is_active",
					"Users row 3: invalid created_at",
					"User Groups row 2: missing group_id",
				})
			})
		})

		Convey("When there are unknown tabs and columns", func() {
			report := service.Check(reg, &model.Dataset{Tables: []*model.RawTable{
				table("Groups", "group_id,group_name,colour", "1,Admins,red"),
				table("Misc", "a", "b"),
				table("Notes", "a", "b"),
			}})

			Convey("Then they should only be warnings", func() {
				So(report.OK(), ShouldBeTrue)
				So(report.Warnings, ShouldResemble, []string{
					`Groups: unexpected column "colour"`,
					"found unexpected tabs that are not defined in the schema: Misc, Notes",
				})
			})
		})
	})
}
