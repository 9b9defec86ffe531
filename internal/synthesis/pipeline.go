package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/majorgraph-backend/internal/datasource"
	"github.com/yungbote/majorgraph-backend/internal/extractor"
	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/progress"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

const noJobSourceLabel = "无可用数据源"

type Config struct {
	JobSources []datasource.JobSource
	Events     datasource.EventSource
	// Extractor may be nil; the built-in sample payload is used instead.
	Extractor      extractor.Extractor
	Store          *graphstore.Store
	Merger         *Merger
	ReferenceRoots []string
	Metrics        *observability.Metrics
	Log            *logger.Logger
}

// Service runs the synthesis pipeline for one (school, college, major) at a time per call.
// Calls for different keys are independent.
type Service struct {
	jobSources     []datasource.JobSource
	events         datasource.EventSource
	extractor      extractor.Extractor
	store          *graphstore.Store
	merger         *Merger
	referenceRoots []string
	metrics        *observability.Metrics
	tracer         trace.Tracer
	log            *logger.Logger
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("synthesis: graph store is required")
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	merger := cfg.Merger
	if merger == nil {
		merger = NewMerger(log)
	}
	return &Service{
		jobSources:     cfg.JobSources,
		events:         cfg.Events,
		extractor:      cfg.Extractor,
		store:          cfg.Store,
		merger:         merger,
		referenceRoots: cfg.ReferenceRoots,
		metrics:        cfg.Metrics,
		tracer:         observability.Tracer(),
		log:            log.With("service", "GraphSynthesis"),
	}, nil
}

func (s *Service) ExtractorConfigured() bool { return s.extractor != nil }

type stageEnd func(status string, err error)

func (s *Service) stage(ctx context.Context, name string) (context.Context, stageEnd) {
	ctx, span := s.tracer.Start(ctx, "synthesis."+name)
	start := time.Now()
	return ctx, func(status string, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("stage.status", status))
		span.End()
		s.metrics.ObserveBuildStage(name, status, time.Since(start))
	}
}

type sourceHit struct {
	name string
	jobs []types.JobRecord
}

type retrieval struct {
	sources       []sourceHit
	talks         []types.TalkRecord
	fairs         []types.FairRecord
	industryFiles []string
	policyFiles   []string
}

// retrieve fetches every read-only input concurrently. A failing producer contributes
// nothing; only cancellation of ctx is returned as an error.
func (s *Service) retrieve(ctx context.Context, ref types.GraphRef) (*retrieval, error) {
	out := &retrieval{sources: make([]sourceHit, len(s.jobSources))}
	g, gctx := errgroup.WithContext(ctx)

	for i, src := range s.jobSources {
		out.sources[i].name = src.Name()
		g.Go(func() error {
			jobs, err := src.SearchJobsByMajor(gctx, ref.Major, 0)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn("job source failed", "source", src.Name(), "major", ref.Major, "error", err)
				return nil
			}
			out.sources[i].jobs = jobs
			return nil
		})
	}
	if s.events != nil {
		g.Go(func() error {
			talks, err := s.events.RelatedTalks(gctx, ref.School, ref.College, datasource.DefaultEventLimit)
			if err != nil {
				s.log.Warn("talk lookup failed", "school", ref.School, "error", err)
				return gctx.Err()
			}
			out.talks = talks
			return nil
		})
		g.Go(func() error {
			fairs, err := s.events.RelatedFairs(gctx, ref.School, datasource.DefaultEventLimit)
			if err != nil {
				s.log.Warn("fair lookup failed", "school", ref.School, "error", err)
				return gctx.Err()
			}
			out.fairs = fairs
			return nil
		})
	}
	g.Go(func() error {
		out.industryFiles = DiscoverReferenceFiles(s.referenceRoots, industryKeywords)
		return nil
	})
	g.Go(func() error {
		out.policyFiles = DiscoverReferenceFiles(s.referenceRoots, policyKeywords)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *retrieval) sourceLabel() string {
	var names []string
	for _, h := range r.sources {
		if len(h.jobs) > 0 {
			names = append(names, h.name)
		}
	}
	if len(names) == 0 {
		return noJobSourceLabel
	}
	return strings.Join(names, " + ")
}

func (r *retrieval) allJobs() []types.JobRecord {
	var out []types.JobRecord
	for _, h := range r.sources {
		out = append(out, h.jobs...)
	}
	return out
}

// Build evicts any cached graph for ref, recomputes it and writes it through the store.
// Progress goes to rep in program order. Producer failures degrade the result; only a
// failed save or cancellation fails the build.
func (s *Service) Build(ctx context.Context, ref types.GraphRef, rep *progress.Reporter) (*types.Graph, error) {
	ref = ref.Trimmed()
	if !ref.Valid() {
		return nil, fmt.Errorf("synthesis: school, college and major are required")
	}
	if rep == nil {
		rep = progress.Nop()
	}
	key := graphstore.KeyFor(ref)
	ctx, span := s.tracer.Start(ctx, "synthesis.Build", trace.WithAttributes(
		attribute.String("graph.key", key.ID),
		attribute.String("graph.major", ref.Major),
	))
	defer span.End()
	log := s.log.With("key", key.ID, "school", ref.School, "college", ref.College, "major", ref.Major, "run_id", rep.RunID())

	if err := s.store.Delete(ctx, key); err != nil {
		log.Warn("stale graph eviction incomplete", "error", err)
	}
	log.Info("graph build started")

	rep.Step(ctx, 1, progress.StatusCompleted, fmt.Sprintf("正在初始化智能体环境... (School: %s)", ref.School))

	// Step 2: retrieval.
	sctx, end := s.stage(ctx, "retrieve")
	rep.Step(sctx, 2, progress.StatusRunning, fmt.Sprintf("正在检索 %s 的相关招聘会与宣讲会数据...", ref.School))
	rep.Agent(sctx, 2, "start", progress.AgentRunning, "调度智能体正在初始化数据采集任务...")
	rep.Agent(sctx, 2, "start", progress.AgentDone, "调度智能体完成初始化，开始分派子智能体。")
	rep.Agent(sctx, 2, "src-1", progress.AgentRunning, fmt.Sprintf("岗位采集智能体正在检索 %s 相关岗位...", ref.Major))

	got, err := s.retrieve(sctx, ref)
	if err != nil {
		end("failed", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("synthesis: retrieve: %w", err)
	}
	for i, h := range got.sources {
		if i == len(got.sources)-1 {
			break
		}
		rep.Agent(sctx, 2, "src-1", progress.AgentRunning, fmt.Sprintf("岗位采集智能体：%s命中 %d 条，继续补充其他来源...", h.name, len(h.jobs)))
	}
	merged := got.allJobs()
	jobs := DedupJobs(merged, func(processed, kept int) {
		rep.Agent(sctx, 2, "src-1", progress.AgentRunning, fmt.Sprintf("岗位采集智能体：已处理 %d/%d 条，去重后 %d 条。", processed, len(merged), kept))
	})
	source := got.sourceLabel()
	rep.Agent(sctx, 2, "src-1", progress.AgentDone, fmt.Sprintf("岗位采集智能体完成：来源[%s]，最终岗位 %d 条。", source, len(jobs)))

	rep.Agent(sctx, 2, "src-2", progress.AgentRunning, "质量筛选智能体正在评估高质量岗位...")
	highQuality := 0
	interval := max(1, len(jobs)/4)
	for i, j := range jobs {
		if IsHighQuality(j) {
			highQuality++
		}
		if (i+1)%interval == 0 || i+1 == len(jobs) {
			rate := float64(highQuality) / float64(i+1) * 100
			rep.Agent(sctx, 2, "src-2", progress.AgentRunning, fmt.Sprintf("质量筛选智能体：已评估 %d/%d 条，高质量占比 %.1f%%。", i+1, len(jobs), rate))
		}
	}
	rep.Agent(sctx, 2, "src-2", progress.AgentDone, fmt.Sprintf("质量筛选智能体完成：识别高质量岗位 %d 条。", highQuality))

	reportFiles(sctx, rep, "src-3", "行业分析智能体正在搜索行业发展文件...", "行业分析智能体完成：发现 %d 个文件（%s）。", "行业分析智能体：未发现行业发展文件。", got.industryFiles)
	reportFiles(sctx, rep, "src-4", "政策解析智能体正在搜索政策文件...", "政策解析智能体完成：发现 %d 个文件（%s）。", "政策解析智能体：未发现政策文件。", got.policyFiles)

	rep.Agent(sctx, 2, "verify", progress.AgentRunning, "校验汇总智能体正在汇总多源数据...")
	rep.Agent(sctx, 2, "verify", progress.AgentDone, fmt.Sprintf("校验汇总智能体完成：宣讲会 %d，招聘会 %d，高质量岗位 %d。", len(got.talks), len(got.fairs), highQuality))
	rep.Step(sctx, 2, progress.StatusCompleted, fmt.Sprintf("检索完成: 发现 %d 场宣讲会 (相关学院: %s), %d 场招聘会。", len(got.talks), ref.College, len(got.fairs)))
	end("completed", nil)

	// Step 3: job matching.
	total := len(jobs)
	rep.StepProgress(ctx, 3, progress.StatusRunning, fmt.Sprintf("正在匹配 %s 专业的所有相关就业岗位数据...", ref.Major),
		progress.Progress{Current: 0, Total: 100, Stage: "搜索岗位"})
	rep.StepProgress(ctx, 3, progress.StatusCompleted, fmt.Sprintf("匹配完成: 从%s找到 %d 个相关岗位，将全部用于分析。", source, total),
		progress.Progress{Current: total, Total: total, Stage: "岗位匹配完成"})

	// Step 4: structural nodes and the extraction text.
	sctx, end = s.stage(ctx, "structure")
	rep.StepProgress(sctx, 4, progress.StatusRunning, fmt.Sprintf("正在构建基础图谱节点（共 %d 个岗位）...", total),
		progress.Progress{Current: 0, Total: total, Stage: "构建节点"})
	rep.Agent(sctx, 4, "build", progress.AgentRunning, "图谱构建智能体正在初始化实体与关系网络...")
	structure := NewStructure(ref.Major)
	text := newExtractionText(ref, got.talks, jobs)
	step := max(1, total/10)
	for i, j := range jobs {
		if structure.AddJob(i, j) {
			text.AddJob(i, j)
		}
		if (i+1)%step == 0 || i == total-1 {
			pct := progress.Percent(i+1, total)
			rep.StepProgress(sctx, 4, progress.StatusRunning, fmt.Sprintf("正在处理岗位数据: %d/%d (%d%%)", i+1, total, pct),
				progress.Progress{Current: i + 1, Total: total, Stage: "处理岗位数据", Percent: pct})
			switch pct {
			case 20, 50, 80, 100:
				rep.Agent(sctx, 4, "build", progress.AgentRunning, fmt.Sprintf("图谱构建智能体：已构建 %d/%d 岗位节点。", i+1, total))
			}
		}
	}
	rep.StepProgress(sctx, 4, progress.StatusCompleted, fmt.Sprintf("基础节点构建完成: %d 个实体，文本长度 %d 字符。", len(structure.Entities), text.Len()),
		progress.Progress{Current: total, Total: total, Stage: "节点构建完成", Percent: 100})
	rep.Agent(sctx, 4, "build", progress.AgentDone, fmt.Sprintf("图谱构建智能体完成：基础图谱已生成 %d 个实体。", len(structure.Entities)))
	end("completed", nil)

	// Step 5: extraction.
	sctx, end = s.stage(ctx, "extract")
	extracted, extractErr := s.extract(sctx, rep, ref, jobs, text.String())
	if extractErr != nil {
		end("failed", extractErr)
	} else {
		end("completed", nil)
	}

	// Step 6: merge and persist.
	sctx, end = s.stage(ctx, "merge")
	rep.StepProgress(sctx, 6, progress.StatusRunning, "正在合并图谱数据并生成最终视图...",
		progress.Progress{Current: 50, Total: 100, Stage: "数据合并", Percent: 50})
	rep.Agent(sctx, 6, "end", progress.AgentRunning, "可视化智能体正在整理最终图谱展示数据...")
	g, report := s.merger.Merge(MergeInput{
		StructuralEntities:      structure.Entities,
		StructuralRelationships: structure.Relationships,
		Extracted:               extracted,
		Jobs:                    jobs,
		MajorID:                 structure.MajorID,
	})
	if err := g.Validate(); err != nil {
		end("failed", err)
		rep.StepProgress(sctx, 6, progress.StatusFailed, fmt.Sprintf("图谱校验失败: %v", err),
			progress.Progress{Current: 0, Total: 100, Stage: "合并失败"})
		return nil, fmt.Errorf("synthesis: merged graph invalid: %w", err)
	}
	observability.ReportGraphQuality(sctx, log, key.ID, qualityIssues(report), map[string]any{
		"school": ref.School, "college": ref.College, "major": ref.Major,
	})
	if err := s.store.Save(sctx, key, g); err != nil {
		end("failed", err)
		rep.StepProgress(sctx, 6, progress.StatusFailed, fmt.Sprintf("图谱保存失败: %v", err),
			progress.Progress{Current: 0, Total: 100, Stage: "保存失败"})
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("synthesis: save: %w", err)
	}
	s.metrics.ObserveGraph(report.TypeCounts)
	rep.Agent(sctx, 6, "end", progress.AgentDone, fmt.Sprintf("可视化智能体完成：最终图谱 %d 实体，%d 关系。", len(g.Entities), len(g.Relationships)))
	end("completed", nil)

	rep.Final(ctx, fmt.Sprintf("知识图谱构建成功！共 %d 个实体，%d 个关系。数据来源: %d 个岗位（实时抽取）", len(g.Entities), len(g.Relationships), total), g)
	log.Info("graph build finished",
		"entities", len(g.Entities),
		"relationships", len(g.Relationships),
		"jobs", total,
		"type_counts", report.TypeCounts,
		"dangling", report.DanglingRelationships,
	)
	return g, nil
}

func reportFiles(ctx context.Context, rep *progress.Reporter, agent, running, found, none string, files []string) {
	rep.Agent(ctx, 2, agent, progress.AgentRunning, running)
	if len(files) == 0 {
		rep.Agent(ctx, 2, agent, progress.AgentBlocked, none)
		return
	}
	rep.Agent(ctx, 2, agent, progress.AgentDone, fmt.Sprintf(found, len(files), extSummary(files)))
}

// extract runs step 5. It never fails the build: an extractor error is reported and the
// extractor contributes nothing.
func (s *Service) extract(ctx context.Context, rep *progress.Reporter, ref types.GraphRef, jobs []types.JobRecord, text string) (*types.RawGraph, error) {
	rep.StepProgress(ctx, 5, progress.StatusRunning, "正在准备调用 智南大模型 进行深度实体抽取...",
		progress.Progress{Current: 0, Total: 100, Stage: "准备中"})
	rep.Agent(ctx, 5, "graph-1", progress.AgentRunning, "知识建模智能体正在抽取专业知识结构...")

	if s.extractor == nil {
		raw := extractor.Mock()
		rep.StepProgress(ctx, 5, progress.StatusCompleted, "使用模拟数据完成抽取。",
			progress.Progress{Current: 100, Total: 100, Stage: "模拟完成", Percent: 100})
		rep.Agent(ctx, 5, "graph-1", progress.AgentDone, "知识建模智能体完成：已使用模拟抽取结果。")
		rep.Agent(ctx, 5, "graph-2", progress.AgentDone, "能力建模智能体完成：已建立能力映射。")
		rep.Agent(ctx, 5, "graph-3", progress.AgentDone, "素质建模智能体完成：已建立素质映射。")
		return raw, nil
	}

	rep.StepProgress(ctx, 5, progress.StatusRunning, fmt.Sprintf("正在构建 LLM 请求，准备分析 %d 个职位描述...", len(jobs)),
		progress.Progress{Current: 10, Total: 100, Stage: "构建请求", Percent: 10})
	variant := extractor.VariantGeneral
	if len(jobs) > 0 {
		variant = extractor.VariantJob
	}
	rep.StepProgress(ctx, 5, progress.StatusRunning, "正在调用 LLM API，抽取能力、技能、素质、课程...",
		progress.Progress{Current: 20, Total: 100, Stage: "调用 LLM API", Percent: 20})

	raw, err := s.extractor.Extract(ctx, text, variant, ref.Major)
	if err == nil && raw == nil {
		err = errors.New("extractor returned no payload")
	}
	if err != nil {
		s.log.Warn("extraction failed; continuing without extractor output", "major", ref.Major, "error", err)
		rep.StepProgress(ctx, 5, progress.StatusFailed, fmt.Sprintf("智南大模型 调用失败: %v", err),
			progress.Progress{Current: 0, Total: 100, Stage: "抽取失败"})
		rep.Agent(ctx, 5, "graph-1", progress.AgentBlocked, fmt.Sprintf("知识建模智能体失败：%v", err))
		rep.Agent(ctx, 5, "graph-2", progress.AgentBlocked, "能力建模智能体受阻：等待可用抽取结果。")
		rep.Agent(ctx, 5, "graph-3", progress.AgentBlocked, "素质建模智能体受阻：等待可用抽取结果。")
		return &types.RawGraph{Entities: []types.RawRecord{}, Relationships: []types.RawRecord{}}, err
	}

	counts := raw.TypeCounts()
	rep.StepProgress(ctx, 5, progress.StatusCompleted,
		fmt.Sprintf("AI 抽取完成: 从 %d 个岗位中发现 %s，%d 个关系", len(jobs), extractionStats(counts, raw.Len()), len(raw.Relationships)),
		progress.Progress{Current: 100, Total: 100, Stage: "抽取完成", Percent: 100})
	rep.Agent(ctx, 5, "graph-1", progress.AgentDone, fmt.Sprintf("知识建模智能体完成：抽取 %d 个实体。", raw.Len()))
	rep.Agent(ctx, 5, "graph-2", progress.AgentRunning, "能力建模智能体正在构建能力-技能映射...")
	rep.Agent(ctx, 5, "graph-2", progress.AgentDone, fmt.Sprintf("能力建模智能体完成：能力%d，技能%d。", counts["Capability"], counts["Skill"]))
	rep.Agent(ctx, 5, "graph-3", progress.AgentRunning, "素质建模智能体正在构建素质关联...")
	rep.Agent(ctx, 5, "graph-3", progress.AgentDone, fmt.Sprintf("素质建模智能体完成：素质%d，课程%d。", counts["Quality"], counts["Course"]))
	return raw, nil
}

func extractionStats(counts map[string]int, total int) string {
	labels := []struct{ typ, label string }{
		{"Capability", "能力"}, {"Skill", "技能"}, {"Quality", "素质"}, {"Course", "课程"},
	}
	var parts []string
	for _, l := range labels {
		if n := counts[l.typ]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s%d个", l.label, n))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d个实体", total)
	}
	return strings.Join(parts, "、")
}

func qualityIssues(r MergeReport) []observability.GraphIssue {
	var out []observability.GraphIssue
	for _, t := range types.EntityTypes() {
		if n := r.Shortfalls[t]; n > 0 {
			out = append(out, observability.GraphIssue{Issue: "quota_shortfall", EntityType: string(t), Count: n})
		}
	}
	if n := len(r.CoverageGaps); n > 0 {
		out = append(out, observability.GraphIssue{Issue: "coverage_gap", Count: n})
	}
	if r.DanglingRelationships > 0 {
		out = append(out, observability.GraphIssue{Issue: "dangling_relationship", Count: r.DanglingRelationships})
	}
	if r.RejectedEntities > 0 {
		out = append(out, observability.GraphIssue{Issue: "rejected_entity", Count: r.RejectedEntities})
	}
	if r.RejectedRelationships > 0 {
		out = append(out, observability.GraphIssue{Issue: "rejected_relationship", Count: r.RejectedRelationships})
	}
	return out
}

// SampleText renders the extractor input for up to size deduplicated jobs of major, for
// inspecting what a build would send.
func (s *Service) SampleText(ctx context.Context, major string, size int) (string, int, error) {
	ref := types.GraphRef{Major: strings.TrimSpace(major)}
	if ref.Major == "" {
		return "", 0, fmt.Errorf("synthesis: major is required")
	}
	got, err := s.retrieve(ctx, ref)
	if err != nil {
		return "", 0, err
	}
	jobs := DedupJobs(got.allJobs(), nil)
	if size > 0 && len(jobs) > size {
		jobs = jobs[:size]
	}
	text := newExtractionText(ref, nil, jobs)
	for i, j := range jobs {
		text.AddJob(i, j)
	}
	return text.String(), len(jobs), nil
}
