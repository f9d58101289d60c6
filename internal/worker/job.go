package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/LeventeLantos/account-provisioner/internal/model"
	"github.com/LeventeLantos/account-provisioner/internal/repo"
	"github.com/LeventeLantos/account-provisioner/internal/service"
)

type Registrar interface {
	Run(ctx context.Context, run service.Run, rows []model.CsvCandidate) model.RunSummary
}

type LoginRetrier interface {
	Run(ctx context.Context, run service.Run) (model.RunSummary, error)
}

type LogFiles interface {
	Today() (fileName, filePath string)
	Logger(level string) *zap.Logger
}

type FeedReader func(path string) ([]model.CsvCandidate, error)

type Config struct {
	CSVPath  string
	LogLevel string
}

// Status describes the most recent finished run.
type Status struct {
	At       time.Time        `json:"at"`
	Reason   string           `json:"reason"`
	LogID    int64            `json:"logId"`
	Register model.RunSummary `json:"register"`
	Login    model.RunSummary `json:"login"`
	Error    string           `json:"error,omitempty"`
}

// Job is one scheduler run: registration over the CSV feed, then login
// retries, correlated through a log_files row.
type Job struct {
	cfg       Config
	files     LogFiles
	logs      repo.LogRepository
	readFeed  FeedReader
	registrar Registrar
	login     LoginRetrier

	logger *zap.Logger
	out    io.Writer
	clock  clockwork.Clock

	mu   sync.RWMutex
	last *Status
}

type Option func(*Job)

func WithLogger(l *zap.Logger) Option {
	return func(j *Job) { j.logger = l }
}

func WithOutput(w io.Writer) Option {
	return func(j *Job) { j.out = w }
}

func WithClock(c clockwork.Clock) Option {
	return func(j *Job) { j.clock = c }
}

func NewJob(
	cfg Config,
	files LogFiles,
	logs repo.LogRepository,
	readFeed FeedReader,
	registrar Registrar,
	login LoginRetrier,
	opts ...Option,
) *Job {
	j := &Job{
		cfg:       cfg,
		files:     files,
		logs:      logs,
		readFeed:  readFeed,
		registrar: registrar,
		login:     login,
		logger:    zap.NewNop(),
		out:       os.Stdout,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run never returns an error. Failures past per-candidate recovery are
// logged as JOB_FAILED and the console gets zero summaries.
func (j *Job) Run(ctx context.Context, reason string) {
	st := Status{At: j.clock.Now(), Reason: reason}

	fileName, filePath := j.files.Today()
	fileLg := j.files.Logger(j.cfg.LogLevel).With(
		zap.String("fileName", fileName),
		zap.String("filePath", filePath),
	)
	defer func() { _ = fileLg.Sync() }()

	err := j.run(ctx, &st, fileLg, fileName, filePath)
	if err != nil {
		st.Register = model.RunSummary{}
		st.Login = model.RunSummary{}
		st.Error = err.Error()

		fileLg.Error("JOB_FAILED",
			zap.String("reason", reason),
			zap.Int64("logId", st.LogID),
			zap.Error(err),
		)
		j.logger.Error("job failed", zap.String("reason", reason), zap.String("file", filePath), zap.Error(err))
	}

	j.printSummary("REGISTER", st.Register)
	j.printSummary("LOGIN", st.Login)

	j.mu.Lock()
	j.last = &st
	j.mu.Unlock()
}

func (j *Job) run(ctx context.Context, st *Status, fileLg *zap.Logger, fileName, filePath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	logID, err := j.logs.Ensure(ctx, fileName, filePath)
	if err != nil {
		return fmt.Errorf("ensure log row: %w", err)
	}
	st.LogID = logID

	lg := fileLg.With(zap.Int64("logId", logID))
	run := service.Run{LogID: logID, Logger: lg}

	lg.Info("JOB_START", zap.String("reason", st.Reason), zap.String("csv", j.cfg.CSVPath))

	rows, err := j.readFeed(j.cfg.CSVPath)
	if err != nil {
		return fmt.Errorf("read csv feed: %w", err)
	}

	st.Register = j.registrar.Run(ctx, run, rows)

	st.Login, err = j.login.Run(ctx, run)
	if err != nil {
		return err
	}

	lg.Info("JOB_DONE",
		zap.String("reason", st.Reason),
		zap.Int("rows", len(rows)),
		zap.Object("register", st.Register),
		zap.Object("login", st.Login),
	)
	j.logger.Info("job done",
		zap.String("reason", st.Reason),
		zap.Int64("logId", logID),
		zap.Object("register", st.Register),
		zap.Object("login", st.Login),
	)
	return nil
}

func (j *Job) printSummary(label string, s model.RunSummary) {
	_, _ = fmt.Fprintf(j.out, "%s summary: success=%d pending=%d fail=%d\n", label, s.Success, s.Pending, s.Fail)
}

// LastStatus returns the last finished run, if any.
func (j *Job) LastStatus() (Status, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return Status{}, false
	}
	return *j.last, true
}
