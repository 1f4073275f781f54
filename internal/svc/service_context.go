package svc

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fachebot/talk-wrapped/internal/config"
	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/logger"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/pipeline"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	DB             *sql.DB
	TransportProxy *http.Transport
	RunModel       *model.RunModel
	LLMClient      *llm.Client // 缺少 LLM 配置时为空
}

func NewServiceContext(c *config.Config) *ServiceContext {
	// 创建数据库连接
	if dir := filepath.Dir(c.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("创建数据目录失败, %v", err)
		}
	}
	db, err := sql.Open("sqlite3", "file:"+c.Store.Path+"?mode=rwc&_journal_mode=WAL&_fk=1")
	if err != nil {
		logger.Fatalf("打开数据库失败, %v", err)
	}
	runModel := model.NewRunModel(db)
	if err := runModel.Migrate(context.Background()); err != nil {
		logger.Fatalf("创建数据库表失败, %v", err)
	}

	// 创建SOCKS5代理
	var transportProxy *http.Transport
	if c.Sock5Proxy.Enable {
		socks5Proxy := fmt.Sprintf("%s:%d", c.Sock5Proxy.Host, c.Sock5Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
		if err != nil {
			logger.Fatalf("创建SOCKS5代理失败, %v", err)
		}

		transportProxy = &http.Transport{
			Dial:            dialer.Dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	svcCtx := &ServiceContext{
		Config:         c,
		DB:             db,
		TransportProxy: transportProxy,
		RunModel:       runModel,
	}

	// 创建LLM客户端
	if err := c.ValidateLLM(); err != nil {
		logger.Warnf("[LLM] 配置不完整，将只生成统计数据: %v", err)
		return svcCtx
	}
	var httpClient *http.Client
	if transportProxy != nil {
		httpClient = &http.Client{Transport: transportProxy}
	}
	svcCtx.LLMClient, err = llm.NewClient(&c.LLM, httpClient)
	if err != nil {
		logger.Fatalf("创建LLM客户端失败, %v", err)
	}
	return svcCtx
}

// Pipeline 创建生成流程，noAI 或没有 LLM 客户端时只走降级模板
func (svcCtx *ServiceContext) Pipeline(noAI bool) *pipeline.Pipeline {
	if noAI || svcCtx.LLMClient == nil {
		return pipeline.New(nil, svcCtx.Config.Pipeline, "")
	}
	return pipeline.New(svcCtx.LLMClient, svcCtx.Config.Pipeline, svcCtx.Config.LLM.ExtractionModel)
}

func (svcCtx *ServiceContext) Close() {
	if err := svcCtx.DB.Close(); err != nil {
		logger.Errorf("关闭数据库失败, %v", err)
	}
}
