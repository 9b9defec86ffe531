package extractor

import (
	"context"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

type mockEntity struct {
	id, name string
	typ      types.EntityType
}

var mockEntities = []mockEntity{
	{"cap1", "电力系统设计能力", types.EntityCapability},
	{"cap2", "自动化控制能力", types.EntityCapability},
	{"cap3", "嵌入式系统开发能力", types.EntityCapability},
	{"cap4", "电气设备维护能力", types.EntityCapability},
	{"cap5", "工程项目管理能力", types.EntityCapability},
	{"cap6", "电路分析与设计能力", types.EntityCapability},
	{"cap7", "PLC编程与调试能力", types.EntityCapability},
	{"cap8", "电机控制能力", types.EntityCapability},
	{"sk1", "AutoCAD", types.EntitySkill},
	{"sk2", "MATLAB", types.EntitySkill},
	{"sk3", "PLC编程", types.EntitySkill},
	{"sk4", "单片机开发", types.EntitySkill},
	{"sk5", "电路仿真", types.EntitySkill},
	{"sk6", "西门子PLC", types.EntitySkill},
	{"sk7", "三菱PLC", types.EntitySkill},
	{"sk8", "C语言", types.EntitySkill},
	{"sk9", "Python", types.EntitySkill},
	{"sk10", "电气制图", types.EntitySkill},
	{"q1", "团队协作", types.EntityQuality},
	{"q2", "沟通能力", types.EntityQuality},
	{"q3", "责任心", types.EntityQuality},
	{"q4", "学习能力", types.EntityQuality},
	{"q5", "抗压能力", types.EntityQuality},
	{"q6", "细心严谨", types.EntityQuality},
	{"co1", "电力电子技术", types.EntityCourse},
	{"co2", "自动控制原理", types.EntityCourse},
	{"co3", "电机与拖动", types.EntityCourse},
	{"co4", "电路分析", types.EntityCourse},
	{"co5", "模拟电子技术", types.EntityCourse},
	{"co6", "数字电子技术", types.EntityCourse},
	{"co7", "单片机原理", types.EntityCourse},
	{"co8", "PLC原理与应用", types.EntityCourse},
}

var mockRelationships = []types.Relationship{
	{Head: "cap1", Relation: types.RelIncludesSkill, Tail: "sk1"},
	{Head: "cap1", Relation: types.RelIncludesSkill, Tail: "sk5"},
	{Head: "cap2", Relation: types.RelIncludesSkill, Tail: "sk3"},
	{Head: "cap2", Relation: types.RelIncludesSkill, Tail: "sk6"},
	{Head: "cap3", Relation: types.RelIncludesSkill, Tail: "sk4"},
	{Head: "cap3", Relation: types.RelIncludesSkill, Tail: "sk8"},
	{Head: "cap7", Relation: types.RelIncludesSkill, Tail: "sk6"},
	{Head: "cap7", Relation: types.RelIncludesSkill, Tail: "sk7"},
	{Head: "cap1", Relation: types.RelRequiresQuality, Tail: "q3"},
	{Head: "cap2", Relation: types.RelRequiresQuality, Tail: "q1"},
	{Head: "cap5", Relation: types.RelRequiresQuality, Tail: "q2"},
	{Head: "cap6", Relation: types.RelRequiresQuality, Tail: "q6"},
	{Head: "co1", Relation: types.RelSupportsCapability, Tail: "cap1"},
	{Head: "co2", Relation: types.RelSupportsCapability, Tail: "cap2"},
	{Head: "co3", Relation: types.RelSupportsCapability, Tail: "cap8"},
	{Head: "co4", Relation: types.RelSupportsCapability, Tail: "cap6"},
	{Head: "co7", Relation: types.RelSupportsCapability, Tail: "cap3"},
	{Head: "co8", Relation: types.RelSupportsCapability, Tail: "cap7"},
}

// Mock returns the fixed sample payload used when no extractor is configured.
func Mock() *types.RawGraph {
	out := &types.RawGraph{
		Entities:      make([]types.RawRecord, 0, len(mockEntities)),
		Relationships: make([]types.RawRecord, 0, len(mockRelationships)),
	}
	for _, e := range mockEntities {
		out.Entities = append(out.Entities, types.RawFromEntity(types.Entity{
			ID:       e.id,
			Name:     e.name,
			Type:     e.typ,
			Category: types.CategoryFor(e.typ),
		}))
	}
	for _, r := range mockRelationships {
		out.Relationships = append(out.Relationships, types.RawFromRelationship(r))
	}
	return out
}

type MockExtractor struct{}

func (MockExtractor) Extract(ctx context.Context, _ string, _ Variant, _ string) (*types.RawGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Mock(), nil
}
