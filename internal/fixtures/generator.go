// Package fixtures generates messy but realistic identity exports: varied
// header spellings, boolean tokens and date formats, rows that break the
// name rule and relationship rows pointing at unknown users.
package fixtures

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/sink"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
)

// Defaults for a Generator.
const (
	DefaultUsers      = 50
	DefaultGroups     = 8
	DefaultRoles      = 4
	DefaultBrokenRate = 0.1
	DefaultOrphanRate = 0.05
	maxSheetWidth     = 50
)

//nolint:gochecknoglobals // read-only alias pools
var (
	userIDHeaders    = []string{"UserID", "Employee ID", "Login"}
	emailHeaders     = []string{"Email", "E-mail", "Mail"}
	firstNameHeaders = []string{"First Name", "Given Name", "Firstname"}
	lastNameHeaders  = []string{"Last Name", "Surname", "Family Name"}
	activeHeaders    = []string{"Active", "Enabled", "Status"}
	createdHeaders   = []string{"Created", "Creation Date", "whenCreated"}

	activeTokens = []string{"yes", "Y", "true", "1", "Enabled", "no", "0", "Disabled", "partially deactivated"}
	dateLayouts  = []string{"2006-01-02", "2006-01-02 15:04:05", "01/02/2006 15:04:05", time.RFC3339}
	firstNames   = []string{"Ann", "Bob", "Chen", "Dana", "Eve", "Femi", "Gus", "Hana", "Ivan", "Jo"}
	lastNames    = []string{"Lee", "Ray", "Ng", "Osei", "Park", "Quinn", "Roth", "Silva", "Tan", "Ueda"}
)

// Expect is what a correct normalization of a generated dataset yields.
type Expect struct {
	Users        int
	InvalidUsers int
	Groups       int
	Roles        int
	Links        int
	OrphanLinks  int
}

// Generator builds synthetic datasets.
type Generator struct {
	seed       uint64
	users      int
	groups     int
	roles      int
	brokenRate float64
	orphanRate float64
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		seed:       1,
		users:      DefaultUsers,
		groups:     DefaultGroups,
		roles:      DefaultRoles,
		brokenRate: DefaultBrokenRate,
		orphanRate: DefaultOrphanRate,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type user struct {
	id    string
	email string
}

// Dataset returns a dataset named name with Users, Groups, Roles,
// User Groups and User Roles tables, and the outcome it should produce.
func (g *Generator) Dataset(name string) (*model.Dataset, Expect) {
	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
	pick := func(pool []string) string { return pool[rng.IntN(len(pool))] }
	exp := Expect{Users: g.users, Groups: g.groups, Roles: g.roles}

	idCol, emailCol, firstCol, lastCol := pick(userIDHeaders), pick(emailHeaders), pick(firstNameHeaders), pick(lastNameHeaders)
	activeCol, createdCol := pick(activeHeaders), pick(createdHeaders)
	users := &model.RawTable{Name: "Users", Columns: []string{idCol, emailCol, firstCol, lastCol, activeCol, createdCol}}
	known := make([]user, 0, g.users)
	base := time.Date(2023, time.January, 1, 8, 0, 0, 0, time.UTC)
	for i := range g.users {
		u := user{
			id:    uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%d/%d", g.seed, i)).String(),
			email: fmt.Sprintf("user%03d@example.com", i),
		}
		known = append(known, u)
		row := map[string]string{
			idCol:      u.id,
			emailCol:   u.email,
			firstCol:   pick(firstNames),
			lastCol:    pick(lastNames),
			activeCol:  pick(activeTokens),
			createdCol: base.Add(time.Duration(rng.IntN(365*24)) * time.Hour).Format(pick(dateLayouts)),
		}
		if rng.Float64() < g.brokenRate {
			exp.InvalidUsers++
			if rng.IntN(2) == 0 {
				row[lastCol] = ""
			} else {
				row[activeCol] = "maybe"
			}
		}
		users.Rows = append(users.Rows, row)
	}

	groups := &model.RawTable{Name: "Groups", Columns: []string{"Group Name", "Description"}}
	for i := range g.groups {
		desc := ""
		if rng.IntN(2) == 0 {
			desc = fmt.Sprintf("Team %d", i+1)
		}
		groups.Rows = append(groups.Rows, map[string]string{"Group Name": groupName(i), "Description": desc})
	}

	roles := &model.RawTable{Name: "Roles", Columns: []string{"Role", "Description"}}
	for i := range g.roles {
		roles.Rows = append(roles.Rows, map[string]string{"Role": roleName(i), "Description": ""})
	}

	link := func(table, userCol, targetCol string, targets int, target func(int) string) *model.RawTable {
		t := &model.RawTable{Name: table, Columns: []string{userCol, targetCol}}
		if targets == 0 {
			return t
		}
		for i, u := range known {
			ref := u.email
			if i%2 == 1 {
				ref = strings.ToUpper(u.id)
			}
			if rng.Float64() < g.orphanRate {
				ref = fmt.Sprintf("ghost%03d@example.com", i)
				exp.OrphanLinks++
			}
			exp.Links++
			t.Rows = append(t.Rows, map[string]string{userCol: ref, targetCol: target(rng.IntN(targets))})
		}
		return t
	}
	memberships := link("User Groups", "Member", "Group", g.groups, groupName)
	assignments := link("User Roles", "User", "Role", g.roles, roleName)

	return &model.Dataset{
		Name:   name,
		Tables: []*model.RawTable{users, groups, roles, memberships, assignments},
	}, exp
}

func groupName(i int) string { return fmt.Sprintf("Group %03d", i+1) }

func roleName(i int) string { return fmt.Sprintf("Role %02d", i+1) }

// WriteXLSX saves ds as a workbook with one sheet per table.
func WriteXLSX(path string, ds *model.Dataset) error {
	sheets := make([]sink.Sheet, 0, len(ds.Tables))
	for _, t := range ds.Tables {
		s := sink.Sheet{Name: t.Name, Columns: t.Columns}
		for _, row := range t.Rows {
			cells := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				cells[i] = row[c]
			}
			s.Rows = append(s.Rows, cells)
		}
		sheets = append(sheets, s)
	}
	f, err := sink.Workbook(sheets, maxSheetWidth)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
