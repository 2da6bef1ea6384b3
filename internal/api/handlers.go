package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"AutoViral-Studio/internal/agent"
	"AutoViral-Studio/internal/agent/catalog"
	xerrors "AutoViral-Studio/internal/errors"
	"AutoViral-Studio/internal/studio"
	"AutoViral-Studio/internal/task"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// agentCallRequest 同时接受 agent_id 与 agentId。
type agentCallRequest struct {
	Message      string `json:"message"`
	AgentID      string `json:"agent_id"`
	AgentIDCamel string `json:"agentId"`
}

func (r agentCallRequest) agentRef() string {
	if strings.TrimSpace(r.AgentID) != "" {
		return r.AgentID
	}
	return r.AgentIDCamel
}

// resolveAgent 将 kind 名称映射为外部 id，未知引用原样透传。
func (s *Server) resolveAgent(ref string) string {
	ref = strings.TrimSpace(ref)
	if a, ok := s.deps.Registry.Resolve(ref); ok {
		return a.ID
	}
	return ref
}

// handleAgentCall 转发单次 agent 调用。agent 级失败同样以 200 返回失败信封。
func (s *Server) handleAgentCall(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		writeJSON(w, http.StatusServiceUnavailable, agent.Failed("agent client 未初始化"))
		return
	}
	var req agentCallRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, agent.Failed("请求体解析失败: "+err.Error()))
		return
	}
	result := s.deps.Agent.Call(r.Context(), req.Message, s.resolveAgent(req.agentRef()))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.deps.Registry.List()})
}

func (s *Server) handleStudioOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tones":             studio.Tones,
		"platforms":         studio.Platforms,
		"lengths":           studio.Lengths,
		"niches":            studio.SearchNiches(r.URL.Query().Get("q")),
		"default_tone":      studio.DefaultTone,
		"default_platforms": studio.DefaultPlatforms(),
		"default_length":    studio.DefaultLength,
	})
}

type sectionResponse struct {
	Section string          `json:"section"`
	Result  catalog.Payload `json:"result"`
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	if !s.studioReady(w) {
		return
	}
	var brief studio.Brief
	if err := decodeBody(w, r, &brief); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	script, err := s.deps.Studio.GenerateScript(r.Context(), brief)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sectionResponse{Section: studio.SectionScript, Result: script})
}

func (s *Server) handleCaptions(w http.ResponseWriter, r *http.Request) {
	if !s.studioReady(w) {
		return
	}
	var brief studio.Brief
	if err := decodeBody(w, r, &brief); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	captions, err := s.deps.Studio.GenerateCaptions(r.Context(), brief)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sectionResponse{Section: studio.SectionCaptions, Result: captions})
}

type trendView struct {
	catalog.Topic
	Velocity        catalog.VelocityLevel `json:"velocity"`
	InterestPercent int                   `json:"interest_percent"`
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if !s.studioReady(w) {
		return
	}
	var req struct {
		Niche string `json:"niche"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	trends, err := s.deps.Studio.SuggestTopics(r.Context(), req.Niche)
	if err != nil {
		writeError(w, err)
		return
	}
	topics := make([]trendView, 0, len(trends.Topics))
	for _, t := range trends.Topics {
		topics = append(topics, trendView{Topic: t, Velocity: t.Velocity(), InterestPercent: t.InterestPercent()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"section": studio.SectionNiches,
		"result": map[string]any{
			"niche":  trends.Niche,
			"topics": topics,
		},
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if !s.studioReady(w) {
		return
	}
	var req struct {
		Videos []studio.VideoStat `json:"videos"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	report, err := s.deps.Studio.OptimizeHooks(r.Context(), req.Videos)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sectionResponse{Section: studio.SectionAnalytics, Result: report})
}

func (s *Server) handleSectionState(w http.ResponseWriter, r *http.Request) {
	if !s.studioReady(w) {
		return
	}
	section, ok := s.deps.Studio.Section(r.PathValue("name"))
	if !ok {
		writeError(w, xerrors.New(xerrors.CodeNotFound, "section not found"))
		return
	}
	writeJSON(w, http.StatusOK, section.Snapshot())
}

func (s *Server) handleSectionReset(w http.ResponseWriter, r *http.Request) {
	if !s.studioReady(w) {
		return
	}
	section, ok := s.deps.Studio.Section(r.PathValue("name"))
	if !ok {
		writeError(w, xerrors.New(xerrors.CodeNotFound, "section not found"))
		return
	}
	section.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) studioReady(w http.ResponseWriter) bool {
	if s.deps.Studio == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "studio 未初始化"))
		return false
	}
	return true
}

func (s *Server) jobsReady(w http.ResponseWriter) bool {
	if s.deps.Jobs == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化"))
		return false
	}
	return true
}

type createJobRequest struct {
	ID           string         `json:"id"`
	Message      string         `json:"message"`
	AgentID      string         `json:"agent_id"`
	AgentIDCamel string         `json:"agentId"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobsReady(w) {
		return
	}
	var req createJobRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	ref := req.AgentID
	if strings.TrimSpace(ref) == "" {
		ref = req.AgentIDCamel
	}
	job, err := s.deps.Jobs.Submit(r.Context(), task.Request{
		ID:       req.ID,
		AgentID:  s.resolveAgent(ref),
		Message:  req.Message,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if !s.jobsReady(w) {
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobs, err := s.deps.Jobs.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	if !s.jobsReady(w) {
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.deps.Jobs.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if !s.jobsReady(w) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少任务 ID"))
		return
	}
	job, err := s.deps.Jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func listOptionsFromQuery(r *http.Request) ([]task.ListOption, error) {
	q := r.URL.Query()
	var opts []task.ListOption
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数")
		}
		opts = append(opts, task.WithLimit(limit))
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须为非负整数")
		}
		opts = append(opts, task.WithOffset(offset))
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			status := task.Status(strings.ToLower(strings.TrimSpace(part)))
			if !task.IsValidStatus(status) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的任务状态: "+part)
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := q.Get("agent_id"); raw != "" {
		opts = append(opts, task.WithAgentID(raw))
	}
	if raw := q.Get("q"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}
	if q.Get("order") == "asc" {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	return opts, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errors.New("请求体为空")
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	writeJSON(w, statusFor(code), errorBody{Error: agent.Describe(err), Code: string(code)})
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, task.CodeJobValidation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, task.CodeJobNotFound:
		return http.StatusNotFound
	case xerrors.CodeBusy, xerrors.CodeConflict, task.CodeJobConflict:
		return http.StatusConflict
	case studio.CodeGenerationFailed:
		return http.StatusBadGateway
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
