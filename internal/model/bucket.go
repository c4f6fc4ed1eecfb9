package model

import "strings"

type Bucket string

const (
	BucketAdmin       Bucket = "admin"
	BucketProjects    Bucket = "projects"
	BucketPeople      Bucket = "people"
	BucketIdeas       Bucket = "ideas"
	BucketNeedsReview Bucket = "needs_review"
)

// Buckets 所有可存放条目的 bucket
var Buckets = []Bucket{BucketAdmin, BucketProjects, BucketPeople, BucketIdeas}

// ParseBucket 接受单复数写法（person/people, project/projects, idea/ideas）
func ParseBucket(s string) (Bucket, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return BucketAdmin, true
	case "project", "projects":
		return BucketProjects, true
	case "person", "people":
		return BucketPeople, true
	case "idea", "ideas":
		return BucketIdeas, true
	case "needs_review":
		return BucketNeedsReview, true
	}
	return "", false
}

func (b Bucket) Storable() bool {
	_, ok := Schemas[b]
	return ok
}

// Schema 描述每个 bucket 在存储层的字段映射。纯数据，move 与 Postgres 仓储都依赖它。
type Schema struct {
	Table         string
	TitleColumn   string
	DetailColumn  string
	DateColumn    string // 空串表示该 bucket 不带日期
	HasNextAction bool
	AllowsPaused  bool
	// 统一状态 -> 存储状态
	StatusNames map[Status]string
}

func (s Schema) DateBearing() bool {
	return s.DateColumn != ""
}

// StorageStatus 统一状态转存储状态
func (s Schema) StorageStatus(st Status) string {
	if name, ok := s.StatusNames[st]; ok {
		return name
	}
	return string(st)
}

// UnifiedStatus 存储状态转统一状态
func (s Schema) UnifiedStatus(stored string) Status {
	for st, name := range s.StatusNames {
		if name == stored {
			return st
		}
	}
	if st, ok := ParseStatus(stored); ok {
		return st
	}
	return StatusActive
}

var Schemas = map[Bucket]Schema{
	BucketAdmin: {
		Table:        "admin",
		TitleColumn:  "title",
		DetailColumn: "description",
		DateColumn:   "due_date",
		StatusNames:  map[Status]string{StatusActive: "pending"},
	},
	BucketProjects: {
		Table:         "projects",
		TitleColumn:   "title",
		DetailColumn:  "description",
		DateColumn:    "due_date",
		HasNextAction: true,
		AllowsPaused:  true,
	},
	BucketPeople: {
		Table:        "people",
		TitleColumn:  "name",
		DetailColumn: "notes",
		DateColumn:   "follow_up_date",
	},
	BucketIdeas: {
		Table:        "ideas",
		TitleColumn:  "title",
		DetailColumn: "content",
		StatusNames:  map[Status]string{StatusActive: "captured", StatusCompleted: "archived"},
	},
}

// SchemaOf 未知 bucket 返回零值和 false
func SchemaOf(b Bucket) (Schema, bool) {
	s, ok := Schemas[b]
	return s, ok
}

// MoveInto 把源条目映射到目标 bucket。只保留标题与正文，其余 bucket 特有字段（日期、
// next_action、优先级、重复规则）全部丢弃；新条目的 ID 由仓储分配。
func MoveInto(src *Item, dest Bucket) *Item {
	return &Item{
		Owner:    src.Owner,
		Bucket:   dest,
		Title:    src.Title,
		Detail:   src.Detail,
		Status:   StatusActive,
		Priority: PriorityNormal,
	}
}
