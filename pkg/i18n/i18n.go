package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds every translatable startup/shutdown log line main.go
// emits. Strategy- and order-level logging stays untranslated (spec.md
// names no i18n requirement below the process lifecycle).
type Messages struct {
	Starting           string
	ConfigLoaded       string
	ConfigLoadFailed   string
	UsingDBPath        string
	DBInitFailed       string
	DBMigrationsFailed string
	PnlReplayed        string
	PnlReplayFailed    string
	VenueInitFailed    string
	EngineServiceInit  string
	EngineRunFailed    string
	APIServerError     string
	ShuttingDown       string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	Starting:           "Starting trading core...",
	ConfigLoaded:       "Config loaded (Port: %s)",
	ConfigLoadFailed:   "Failed to load config: %v",
	UsingDBPath:        "Using DB path: %s",
	DBInitFailed:       "Failed to init database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	PnlReplayed:        "Replayed today's realized P&L: %.2f",
	PnlReplayFailed:    "Failed to replay today's P&L, starting from zero: %v",
	VenueInitFailed:    "Failed to init venue client %s: %v",
	EngineServiceInit:  "Engine service initialized",
	EngineRunFailed:    "Engine run stopped: %v",
	APIServerError:     "API server error: %v",
	ShuttingDown:       "Shutting down gracefully...",
}

// Chinese messages
var messagesZH = Messages{
	Starting:           "啟動交易核心...",
	ConfigLoaded:       "設定已載入（埠號：%s）",
	ConfigLoadFailed:   "讀取設定失敗：%v",
	UsingDBPath:        "使用資料庫路徑：%s",
	DBInitFailed:       "初始化資料庫失敗：%v",
	DBMigrationsFailed: "套用資料庫遷移失敗：%v",
	PnlReplayed:        "已還原今日已實現損益：%.2f",
	PnlReplayFailed:    "還原今日損益失敗，從零開始：%v",
	VenueInitFailed:    "初始化交易所客戶端 %s 失敗：%v",
	EngineServiceInit:  "引擎服務初始化完成",
	EngineRunFailed:    "引擎已停止執行：%v",
	APIServerError:     "API 伺服器錯誤：%v",
	ShuttingDown:       "正在優雅關閉...",
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
