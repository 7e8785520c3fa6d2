package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/Meesho/BharatMLStack/predict-server/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var (
	once        sync.Once
	initialized           = false
	appName               = ""
	output      io.Writer = os.Stdout
)

// Init initializes the logger by fetching the log level and app name from the app configuration
func Init(cfg config.Configs) {
	appName = cfg.AppName
	logLevel := cfg.AppLogLevel

	if len(appName) == 0 {
		appName = config.DefaultAppName
		log.Warn().Msgf("App name not set, defaulting to '%s'", appName)
	}
	if len(logLevel) == 0 {
		log.Warn().Msg("Log level not set, defaulting to INFO")
		logLevel = "INFO"
	}
	initLogger(appName, strings.ToUpper(logLevel))
}

func initLogger(appName, logLevel string) {
	if initialized {
		log.Debug().Msgf("Logger already initialized!")
		return
	}
	once.Do(func() {
		setLogLevel(logLevel)
		log.Logger = log.With().Str("applicationName", appName).Logger()
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    true,
			TimeFormat: "02-01-2006 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
			FormatMessage: func(i interface{}) string {
				return fmt.Sprintf("%s", i)
			},
			FieldsExclude: []string{
				"applicationName",
			},
			PartsOrder: []string{
				"applicationName",
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			},
		})

		log.Logger = log.With().Caller().Logger()

		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			lineNum := strconv.Itoa(line)
			parts := strings.Split(file, "/")
			return parts[len(parts)-1] + ":" + lineNum
		}

		log.Logger = log.Logger.Hook(TraceHook{})

		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return fmt.Sprintf("%s\n%s", err, debug.Stack())
		}

		initialized = true
		log.Info().Msg("Logger initialized!")
	})
}

func setLogLevel(logLevel string) {
	switch logLevel {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "FATAL":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "PANIC":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "DISABLED":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		log.Panic().Msgf("Incorrect log level - %s", logLevel)
	}
}

// TraceHook stamps events logged with a span-carrying context with its trace and span ids.
type TraceHook struct{}

func (h TraceHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		e.Str("trace_id", sc.TraceID().String())
	}
	if sc.HasSpanID() {
		e.Str("span_id", sc.SpanID().String())
	}
}
