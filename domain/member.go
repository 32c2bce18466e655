package domain

import (
	"fmt"
	"sort"
	"time"
)

// Member describes one grid node. Stats are best effort and only used for display.
type Member struct {
	UUID       string
	Address    string
	Local      bool
	StartedAt  time.Time
	RSSBytes   uint64
	CPUPercent float64
}

func (m Member) String() string {
	local := ""
	if m.Local {
		local = " this"
	}
	return fmt.Sprintf("Member [%s]%s", m.Address, local)
}

// SortMembers orders members the way they are listed: local member first, then by address.
func SortMembers(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Local != members[j].Local {
			return members[i].Local
		}
		return members[i].Address < members[j].Address
	})
}
