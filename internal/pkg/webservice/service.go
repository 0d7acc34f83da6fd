package webservice

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/aplay/mscribe/internal/pkg/analysis"
	"github.com/aplay/mscribe/internal/pkg/api"
	"github.com/aplay/mscribe/internal/pkg/filestore"
	"github.com/aplay/mscribe/internal/pkg/orchestrator"
	"github.com/aplay/mscribe/internal/pkg/registry"
	"github.com/aplay/mscribe/internal/pkg/segments"
	"github.com/aplay/mscribe/internal/pkg/status"
	"github.com/aplay/mscribe/internal/pkg/utils"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Orchestrator drives the processing pipeline and owns job records
type Orchestrator interface {
	Submit(ctx context.Context, in *orchestrator.SubmitData) (*registry.Job, error)
	GetJob(id string) (*registry.Job, bool)
	DeleteJob(id string) error
	ClearJobs() int
	JobStats() registry.Counts
	AnalyzeTranscript(ctx context.Context, segs []segments.Segment, analysisType, customPrompt string) (string, error)
	Info() *orchestrator.Capabilities
}

// FileSaver stores uploaded audio and returns the saved path
type FileSaver interface {
	Save(id, fileName string, r io.Reader) (string, error)
}

// WSConnHandler manages websocket subscriber connections
type WSConnHandler interface {
	HandleConnection(WsConn) error
}

// Data keeps data required for service work
type Data struct {
	Port         int
	Orchestrator Orchestrator
	Saver        FileSaver
	WSHandler    WSConnHandler
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP mscribe service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 180 * time.Second
	// sync mode keeps the caller waiting for the whole pipeline
	e.Server.WriteTimeout = 600 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Orchestrator == nil {
		return errors.New("no orchestrator")
	}
	if data.Saver == nil {
		return fmt.Errorf("no file saver")
	}
	if data.WSHandler == nil {
		return fmt.Errorf("no WSHandler")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("mscribe", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	promMdlw.Use(e)

	e.POST("/process-audio", processAudio(data))
	e.POST("/analyze-transcript", analyzeTranscript(data))
	e.GET("/job/:id/status", jobStatus(data))
	e.DELETE("/jobs/:id", deleteJob(data))
	e.DELETE("/jobs", clearJobs(data))
	e.GET("/models/info", modelsInfo(data))
	e.GET("/stats", stats(data))
	e.GET("/live", live(data))
	e.GET("/subscribe", subscribeHandler(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

type jobView struct {
	JobID       string           `json:"job_id"`
	Status      string           `json:"status"`
	Step        string           `json:"step,omitempty"`
	Progress    int              `json:"progress"`
	ElapsedTime float64          `json:"elapsed_time,omitempty"`
	Result      *registry.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func mapJob(j *registry.Job) *jobView {
	res := &jobView{JobID: j.ID, Status: j.Status.String(), Step: j.Step,
		Progress: j.Progress, Result: j.Result, Error: j.Error}
	if j.Status == status.Processing {
		res.ElapsedTime = round2(time.Since(j.StartedAt).Seconds())
	}
	return res
}

type submitResult struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func processAudio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("processAudio method")()
		ctx := c.Request().Context()

		file, handler, err := takeFile(c, api.PrmFile)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no file")
		}
		defer file.Close()

		opts, err := takeOptions(c, handler.Filename)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		path, err := data.Saver.Save(uuid.New().String(), handler.Filename, file)
		if err != nil {
			if errors.Is(err, filestore.ErrWrongFormat) || errors.Is(err, filestore.ErrTooLarge) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}

		async := utils.ParamTrue(c.FormValue(api.PrmAsync))
		job, err := data.Orchestrator.Submit(ctx, &orchestrator.SubmitData{FilePath: path,
			Options: *opts, Async: async})
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if async {
			return c.JSON(http.StatusOK, submitResult{JobID: job.ID, Status: job.Status.String()})
		}
		return c.JSON(http.StatusOK, mapJob(job))
	}
}

func takeFile(c echo.Context, paramName string) (multipart.File, *multipart.FileHeader, error) {
	handler, err := c.FormFile(paramName)
	if err != nil {
		return nil, nil, fmt.Errorf("no form param file: %w", err)
	}
	file, err := handler.Open()
	return file, handler, err
}

func takeOptions(c echo.Context, fileName string) (*api.Options, error) {
	res := api.Options{FileName: fileName,
		Language:     c.FormValue(api.PrmLanguage),
		AnalysisType: c.FormValue(api.PrmAnalysisType)}
	var err error
	if res.NumSpeakers, err = takeInt(c, api.PrmNumSpeakers); err != nil {
		return nil, err
	}
	if res.MinSpeakers, err = takeInt(c, api.PrmMinSpeakers); err != nil {
		return nil, err
	}
	if res.MaxSpeakers, err = takeInt(c, api.PrmMaxSpeakers); err != nil {
		return nil, err
	}
	return &res, nil
}

func takeInt(c echo.Context, paramName string) (int, error) {
	s := c.FormValue(paramName)
	if s == "" {
		return 0, nil
	}
	res, err := strconv.Atoi(s)
	if err != nil || res < 0 {
		return 0, fmt.Errorf("wrong parameter '%s' value '%s'", paramName, s)
	}
	return res, nil
}

func jobStatus(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("jobStatus method")()
		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no ID")
		}
		job, ok := data.Orchestrator.GetJob(id)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return c.JSON(http.StatusOK, mapJob(job))
	}
}

type deleteResult struct {
	JobID   string `json:"job_id"`
	Deleted bool   `json:"deleted"`
}

func deleteJob(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("deleteJob method")()
		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no ID")
		}
		if err := data.Orchestrator.DeleteJob(id); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "job not found")
			}
			if errors.Is(err, registry.ErrActive) {
				return echo.NewHTTPError(http.StatusBadRequest, "job is still processing")
			}
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, deleteResult{JobID: id, Deleted: true})
	}
}

type clearResult struct {
	Removed int `json:"removed"`
}

func clearJobs(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("clearJobs method")()
		return c.JSON(http.StatusOK, clearResult{Removed: data.Orchestrator.ClearJobs()})
	}
}

type analyzeRequest struct {
	Transcript   []segments.Segment `json:"transcript"`
	AnalysisType string             `json:"analysis_type"`
	CustomPrompt string             `json:"custom_prompt,omitempty"`
}

type analyzeResult struct {
	Status       string `json:"status"`
	Analysis     string `json:"analysis"`
	AnalysisType string `json:"analysis_type"`
}

func analyzeTranscript(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("analyzeTranscript method")()
		var req analyzeRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can't decode request")
		}
		if len(req.Transcript) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "no transcript")
		}
		res, err := data.Orchestrator.AnalyzeTranscript(c.Request().Context(), req.Transcript,
			req.AnalysisType, req.CustomPrompt)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(analysisErrCode(err), err.Error())
		}
		return c.JSON(http.StatusOK, analyzeResult{Status: status.Completed.String(),
			Analysis: res, AnalysisType: req.AnalysisType})
	}
}

func analysisErrCode(err error) int {
	switch {
	case errors.Is(err, analysis.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, analysis.ErrConnection):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func modelsInfo(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, data.Orchestrator.Info())
	}
}

type statsResult struct {
	registry.Counts
	SuccessRate float64 `json:"success_rate"`
}

func stats(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		counts := data.Orchestrator.JobStats()
		res := statsResult{Counts: counts}
		if done := counts.Completed + counts.Failed; done > 0 {
			res.SuccessRate = round2(float64(counts.Completed) * 100 / float64(done))
		}
		return c.JSON(http.StatusOK, res)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
