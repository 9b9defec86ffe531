package synthesis

import "github.com/yungbote/majorgraph-backend/internal/types"

// Quota is the minimum number of entities of one type a finished graph should carry.
type Quota struct {
	Type    types.EntityType
	Minimum int
}

// DefaultQuotas is evaluated in order; capabilities are topped up before the types that
// anchor on them.
var DefaultQuotas = []Quota{
	{Type: types.EntityMajor, Minimum: 1},
	{Type: types.EntityCapability, Minimum: 18},
	{Type: types.EntitySkill, Minimum: 30},
	{Type: types.EntityQuality, Minimum: 12},
	{Type: types.EntityCourse, Minimum: 16},
}

// DefaultPools are the curated names used to cover quota shortfalls, consumed in order.
// Majors have no pool: a graph without its major cannot be repaired from generic names.
var DefaultPools = map[types.EntityType][]string{
	types.EntityCapability: {
		"工程问题分析能力",
		"技术方案设计能力",
		"系统集成与联调能力",
		"数据驱动决策能力",
		"需求分析与建模能力",
		"项目实施与交付能力",
		"质量控制与持续改进能力",
		"跨学科协同创新能力",
		"现场故障诊断能力",
		"系统优化与运维能力",
		"安全规范执行能力",
		"标准化设计能力",
		"实验设计与验证能力",
		"工程文档编制能力",
		"业务理解与技术转化能力",
		"新技术学习与迁移能力",
		"成本与效益评估能力",
		"风险识别与应对能力",
		"专业工具应用能力",
		"职业场景综合应用能力",
	},
	types.EntitySkill: {
		"Python",
		"Java",
		"C语言",
		"C++",
		"SQL",
		"MySQL",
		"Linux",
		"Git",
		"MATLAB",
		"AutoCAD",
		"PLC编程",
		"单片机开发",
		"电路分析",
		"控制系统仿真",
		"数据可视化",
		"需求分析",
		"系统测试与调试",
		"接口联调",
		"文档写作",
		"项目管理工具",
		"Office办公软件",
		"数据清洗",
		"统计分析",
		"实验仪器操作",
		"安全操作规范",
		"故障排查",
		"流程优化",
		"质量管理基础",
		"技术方案汇报",
		"跨团队沟通",
		"代码规范",
		"版本管理",
		"自动化脚本开发",
		"基础算法设计",
		"工程制图",
	},
	types.EntityQuality: {
		"团队协作",
		"沟通表达",
		"责任心",
		"执行力",
		"学习能力",
		"抗压能力",
		"时间管理",
		"问题解决意识",
		"职业道德",
		"质量意识",
		"服务意识",
		"创新意识",
		"组织协调能力",
		"细心严谨",
		"持续改进意识",
	},
	types.EntityCourse: {
		"程序设计基础",
		"数据结构",
		"数据库原理",
		"操作系统基础",
		"计算机网络基础",
		"自动控制原理",
		"电路分析基础",
		"工程制图与CAD",
		"PLC原理与应用",
		"单片机原理",
		"嵌入式系统设计",
		"工程项目管理",
		"系统测试技术",
		"专业综合实训",
		"工程实践训练",
		"毕业设计（论文）",
		"职业素养与沟通",
		"创新创业基础",
		"数据分析与可视化",
		"生产实习",
	},
}
