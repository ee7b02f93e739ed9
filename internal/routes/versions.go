package routes

import "fmt"

// Page identifiers rendered by the frontend.
const (
	PageModule = "ModulePage"
	PageSearch = "SearchPage"
	PageAdmin  = "AdminPage"
)

// DefaultModule is where the root redirect of version 2 lands.
const DefaultModule = "CS101"

var moduleEntry = Entry{
	Pattern:       "/module/:moduleName",
	Name:          "module",
	Target:        PageModule,
	PropsFromPath: true,
}

var versions = map[int][]Entry{
	1: {moduleEntry},
	2: {
		moduleEntry,
		{Pattern: "/", Redirect: "/module/" + DefaultModule},
	},
	3: {
		moduleEntry,
		{Pattern: "/", Name: "search", Target: PageSearch},
	},
	4: {
		moduleEntry,
		{Pattern: "/", Name: "search", Target: PageSearch},
		{Pattern: "/admin", Name: "admin", Target: PageAdmin},
	},
}

// LatestVersion is the route table version served by default.
const LatestVersion = 4

// Version returns the route table for version n (1 through LatestVersion).
func Version(n int) (*Table, error) {
	entries, ok := versions[n]
	if !ok {
		return nil, fmt.Errorf("unknown route table version %d (want 1-%d)", n, LatestVersion)
	}
	return New(entries...)
}

// Latest returns the current route table.
func Latest() *Table {
	return mustNew(versions[LatestVersion]...)
}
