package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

// run executes the root command with args and returns its output.
func run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestSchemaCommand(t *testing.T) {
	convey.Convey("Given the schema command", t, func() {
		out, err := run("schema")

		convey.Convey("Then it should print the embedded schema", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "name: User Groups")
			convey.So(out, convey.ShouldContainSubstring, "kind: relationship")
		})
	})
}

func TestGenerateAndNormalize(t *testing.T) {
	convey.Convey("Given a generated export", t, func() {
		dir := t.TempDir()
		input := filepath.Join(dir, "export.xlsx")
		store := filepath.Join(dir, "idnorm.db")
		output := filepath.Join(dir, "out")

		out, err := run("generate", input, "--seed", "7", "--users", "20", "--broken", "0.5")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldContainSubstring, "20 users")
		_, err = os.Stat(input)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When normalizing it", func() {
			out, err := run("normalize", input, "--store", store, "-o", output, "--review", "accept")

			convey.Convey("Then every table should be reported and both workbooks written", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Users")
				convey.So(out, convey.ShouldContainSubstring, "User Groups")
				converted, _ := filepath.Glob(filepath.Join(output, "converted_*.xlsx"))
				convey.So(converted, convey.ShouldHaveLength, 1)
				invalid, _ := filepath.Glob(filepath.Join(output, "invalid_records_converted_*.xlsx"))
				convey.So(invalid, convey.ShouldHaveLength, 1)
			})

			convey.Convey("Then the run should be listed in the history", func() {
				out, err := run("runs", "--store", store)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "export.xlsx")
			})

			convey.Convey("Then saved mappings can be forgotten", func() {
				out, err := run("runs", "forget-mappings", "--store", store)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "saved mappings deleted")
			})
		})

		convey.Convey("When normalizing a missing file", func() {
			_, err := run("normalize", filepath.Join(dir, "missing.xlsx"), "--store", store, "-o", output)

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestCheckCommand(t *testing.T) {
	convey.Convey("Given converted sheets", t, func() {
		dir := t.TempDir()

		convey.Convey("When every row satisfies the rules", func() {
			path := filepath.Join(dir, "Groups.csv")
			convey.So(os.WriteFile(path, []byte("group_id,group_name,group_description\n1,Admins,Admins\n"), 0o600), convey.ShouldBeNil)
			out, err := run("check", path)

			convey.Convey("Then it should pass", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "ok")
			})
		})

		convey.Convey("When a row breaks a rule", func() {
			path := filepath.Join(dir, "Users.csv")
			convey.So(os.WriteFile(path, []byte("user_id,first_name,last_name,full_name\nu2,Bob,,\n"), 0o600), convey.ShouldBeNil)
			out, err := run("check", path)

			convey.Convey("Then it should fail and list the violation", func() {
				convey.So(err, convey.ShouldEqual, errFailed)
				convey.So(out, convey.ShouldContainSubstring, "incomplete name fields")
				convey.So(out, convey.ShouldContainSubstring, "1 errors")
			})
		})
	})
}

func TestUnknownCommand(t *testing.T) {
	convey.Convey("Given an unknown subcommand", t, func() {
		_, err := run("frobnicate")

		convey.Convey("Then it should be rejected", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
