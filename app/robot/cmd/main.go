package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lk2023060901/xdooria-netclient/app/robot/internal/client"
	robotconfig "github.com/lk2023060901/xdooria-netclient/app/robot/internal/config"
	"github.com/lk2023060901/xdooria-netclient/app/robot/internal/msg"
	"github.com/lk2023060901/xdooria-netclient/pkg/app"
	"github.com/lk2023060901/xdooria-netclient/pkg/config"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/netclient"
	prom "github.com/lk2023060901/xdooria-netclient/pkg/prometheus"
	"github.com/lk2023060901/xdooria-netclient/pkg/protocol"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
	"github.com/lk2023060901/xdooria-netclient/pkg/tcp"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
	"github.com/lk2023060901/xdooria-netclient/pkg/websocket"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("robot", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "配置文件路径")
	showVersion := fs.BoolP("version", "v", false, "打印版本信息")
	robotconfig.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(app.GetInfo().String())
		return
	}

	if err := run(*configPath, fs); err != nil {
		fmt.Fprintf(os.Stderr, "robot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, fs *pflag.FlagSet) error {
	cfg, cfgMgr, err := robotconfig.Load(configPath, fs)
	if err != nil {
		return err
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(l)

	exporter, err := prom.New(&cfg.Metrics, prom.WithLogger(l.Named("metrics")))
	if err != nil {
		return err
	}

	s, err := serializer.ByName(cfg.NetClient.Serializer)
	if err != nil {
		return err
	}
	registry := protocol.NewRegistry()
	if err := msg.Register(registry, s); err != nil {
		return fmt.Errorf("register protocols: %w", err)
	}

	mgr, err := netclient.New(registry,
		netclient.WithTransportFactory(newTransportFactory(cfg, l, exporter)),
		netclient.WithConfig(&cfg.NetClient),
		netclient.WithSerializer(s),
		netclient.WithLogger(l.Named("netclient")),
		netclient.WithMetrics(netclient.NewMetrics(exporter.Registry())),
	)
	if err != nil {
		return err
	}

	if configPath != "" {
		watchNetClient(cfgMgr, mgr, l)
	}

	token := cfg.Token
	if token == "" && cfg.Auth.SecretKey != "" {
		if token, err = client.IssueToken(&cfg.Auth, cfg.Account); err != nil {
			return err
		}
		l.Info("login token issued", "account", cfg.Account, "token_length", len(token))
	}

	robot := client.NewRobot(mgr, cfg.Account,
		client.WithLogger(l.Named("robot.client")),
		client.WithToken(token),
		client.WithPingInterval(cfg.PingInterval),
	)

	a := app.New(app.WithName("robot"), app.WithLogger(l))
	if cfg.Metrics.Enable {
		a.Go("metrics", exporter.Serve)
	}

	l.Info("connecting",
		"server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"transport", cfg.Transport,
		"serializer", s.Name(),
		"account", cfg.Account,
	)
	if err := robot.Connect(cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}
	a.Go("robot", func(ctx context.Context) error {
		return robot.Run(ctx, cfg.TickInterval)
	})

	return a.Run(context.Background())
}

func newTransportFactory(cfg *robotconfig.Config, l logger.Logger, exporter *prom.Exporter) transport.Factory {
	if cfg.Transport == robotconfig.TransportTCP {
		return tcp.NewFactory(&cfg.TCP, tcp.WithLogger(l.Named("tcp")))
	}
	return websocket.NewFactory(&cfg.WebSocket,
		websocket.WithLogger(l.Named("websocket")),
		websocket.WithMetrics(websocket.NewClientMetrics(exporter.Registry())),
	)
}

// watchNetClient 配置文件变化时更新报文日志开关
func watchNetClient(cfgMgr config.Manager, mgr *netclient.Manager, l logger.Logger) {
	w, err := config.NewWatcher[netclient.Config](cfgMgr, "netclient")
	if err != nil {
		l.Warn("config watch disabled", "error", err)
		return
	}
	w.OnChange(func(c *netclient.Config) {
		mgr.SetLogPayload(c.LogPayload)
		l.Info("netclient config reloaded", "log_payload", c.LogPayload)
	})
	w.OnError(func(err error) {
		l.Warn("netclient config reload failed", "error", err)
	})
}
