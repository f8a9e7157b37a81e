package db

import "strconv"

type scopeKind uint8

const (
	scopeUnset scopeKind = iota
	scopeAnonymous
	scopeOwned
)

const anonymousScopeKey = "anonymous"

// Scope 表示习惯所属的分区：某个登录用户，或未登录时共享的匿名分区。
// 零值无效，必须通过 Owned 或 Anonymous 构造。
type Scope struct {
	kind   scopeKind
	userID uint
}

// Owned 返回用户分区；userID 为 0 时得到无效分区
func Owned(userID uint) Scope {
	if userID == 0 {
		return Scope{}
	}
	return Scope{kind: scopeOwned, userID: userID}
}

// Anonymous 返回匿名共享分区
func Anonymous() Scope {
	return Scope{kind: scopeAnonymous}
}

func (s Scope) Valid() bool {
	return s.kind != scopeUnset
}

func (s Scope) IsAnonymous() bool {
	return s.kind == scopeAnonymous
}

// UserID 返回所属用户；匿名或无效分区返回 false
func (s Scope) UserID() (uint, bool) {
	if s.kind != scopeOwned {
		return 0, false
	}
	return s.userID, true
}

// Key 是落库的分区标识，参与 (scope, name_key) 唯一索引
func (s Scope) Key() string {
	switch s.kind {
	case scopeOwned:
		return "user:" + strconv.FormatUint(uint64(s.userID), 10)
	case scopeAnonymous:
		return anonymousScopeKey
	default:
		return ""
	}
}

func (s Scope) String() string {
	if !s.Valid() {
		return "invalid"
	}
	return s.Key()
}
