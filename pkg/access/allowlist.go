package access

import "sort"

// AllowList 允许使用的 owner；为空时不限制
type AllowList struct {
	ids map[int64]struct{}
}

func NewAllowList(ids []int64) AllowList {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return AllowList{ids: m}
}

func (a AllowList) Open() bool {
	return len(a.ids) == 0
}

func (a AllowList) Allowed(owner int64) bool {
	if a.Open() {
		return true
	}
	_, ok := a.ids[owner]
	return ok
}

// Owners 升序返回，供定时任务遍历
func (a AllowList) Owners() []int64 {
	out := make([]int64, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OwnerForbiddenError owner 不在允许列表
type OwnerForbiddenError struct {
	OwnerID int64
}

func (e *OwnerForbiddenError) Error() string {
	return "owner not allowed"
}

// OwnerMismatchError payload 中的 owner 与 token 不一致
type OwnerMismatchError struct {
	TokenOwner   int64
	PayloadOwner int64
}

func (e *OwnerMismatchError) Error() string {
	return "owner_id in payload does not match token"
}

// CheckOwner payload 未带 owner（0）时视为 token 的 owner
func (a AllowList) CheckOwner(tokenOwner, payloadOwner int64) error {
	if payloadOwner != 0 && payloadOwner != tokenOwner {
		return &OwnerMismatchError{TokenOwner: tokenOwner, PayloadOwner: payloadOwner}
	}
	if !a.Allowed(tokenOwner) {
		return &OwnerForbiddenError{OwnerID: tokenOwner}
	}
	return nil
}
