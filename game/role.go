package game

// Team 阵营 - the win-condition grouping a role belongs to.
type Team string

const (
	TeamCompany    Team = "COMPANY"
	TeamSpies      Team = "SPIES"
	TeamThirdParty Team = "THIRD_PARTY"
)

// Ability is the night action a role may perform. Roles without a night
// action have AbilityNone.
type Ability string

const (
	AbilityNone   Ability = ""
	AbilityAttack Ability = "ATTACK"
	AbilityDivine Ability = "DIVINE"
	AbilityGuard  Ability = "GUARD"
)

// Role 角色 - one of the eight hidden roles dealt at game start.
type Role string

const (
	RoleSpy        Role = "SPY"        // 産業スパイ (wolf)
	RoleDrone      Role = "DRONE"      // 社畜 (villager)
	RoleHR         Role = "HR"         // 人事部 (seer)
	RoleGA         Role = "GA"         // 総務部 (bodyguard)
	RoleGossip     Role = "GOSSIP"     // お局様 (medium)
	RoleYesman     Role = "YESMAN"     // イエスマン (madman)
	RoleEngineer   Role = "ENGINEER"   // エンジニア (mason)
	RoleConsultant Role = "CONSULTANT" // コンサル (fox)
)

// Team returns the win-condition grouping of the role.
func (r Role) Team() Team {
	switch r {
	case RoleSpy, RoleYesman:
		return TeamSpies
	case RoleConsultant:
		return TeamThirdParty
	default:
		return TeamCompany
	}
}

// Ability returns the night action the role performs, if any.
func (r Role) Ability() Ability {
	switch r {
	case RoleSpy:
		return AbilityAttack
	case RoleHR:
		return AbilityDivine
	case RoleGA:
		return AbilityGuard
	default:
		return AbilityNone
	}
}

// CountsAsSpy reports whether the role counts toward the spy-majority win
// check. The YESMAN is on the spy team but does not count; only actual
// spies do.
func (r Role) CountsAsSpy() bool {
	return r == RoleSpy
}

// DiesWhenDivined reports whether an HR investigation kills the role. The
// consultant is exposed and fired when divined, even if guarded.
func (r Role) DiesWhenDivined() bool {
	return r == RoleConsultant
}

// ImmuneToAttack reports whether a spy attack fails against the role.
func (r Role) ImmuneToAttack() bool {
	return r == RoleConsultant
}

// DisplayName returns the Japanese flavor name shown to players.
func (r Role) DisplayName() string {
	switch r {
	case RoleSpy:
		return "産業スパイ"
	case RoleDrone:
		return "社畜"
	case RoleHR:
		return "人事部"
	case RoleGA:
		return "総務部"
	case RoleGossip:
		return "お局様"
	case RoleYesman:
		return "イエスマン"
	case RoleEngineer:
		return "エンジニア"
	case RoleConsultant:
		return "コンサル"
	default:
		return "不明"
	}
}

// Valid reports whether r is one of the eight known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSpy, RoleDrone, RoleHR, RoleGA, RoleGossip, RoleYesman, RoleEngineer, RoleConsultant:
		return true
	}
	return false
}

// RolesForCount returns the ordered role multiset dealt for the given player
// count. Counts above eight are padded with drones; the result always has
// exactly count entries for count >= 4.
func RolesForCount(count int) []Role {
	var roles []Role
	switch {
	case count <= 4:
		roles = []Role{RoleSpy, RoleHR, RoleGA, RoleDrone}
	case count == 5:
		roles = []Role{RoleSpy, RoleHR, RoleGA, RoleDrone, RoleYesman}
	case count == 6:
		roles = []Role{RoleSpy, RoleHR, RoleGA, RoleGossip, RoleYesman, RoleDrone}
	case count == 7:
		roles = []Role{RoleSpy, RoleSpy, RoleHR, RoleGA, RoleGossip, RoleYesman, RoleDrone}
	default:
		roles = []Role{RoleSpy, RoleSpy, RoleHR, RoleGA, RoleGossip, RoleEngineer, RoleConsultant, RoleYesman}
	}

	for len(roles) < count {
		roles = append(roles, RoleDrone)
	}
	return roles[:count]
}
