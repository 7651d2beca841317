package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/driftwood2d/resvfs/internal/config"
	"github.com/driftwood2d/resvfs/internal/decode"
	"github.com/driftwood2d/resvfs/internal/logging"
	"github.com/driftwood2d/resvfs/internal/resource"
	"github.com/driftwood2d/resvfs/internal/server"
	"github.com/driftwood2d/resvfs/internal/server/routes"
	"github.com/driftwood2d/resvfs/internal/ticker"
	"github.com/driftwood2d/resvfs/internal/vfs"
	"github.com/driftwood2d/resvfs/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	list        bool
	resolve     string
	serve       bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["root"] = cfg.Path.Root
		fields["packages"] = len(cfg.Path.Packages)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 日志 → 驱动器（作为缓存时钟）→ Manager 挂载 → 诊断服务。
	driver, err := ticker.New(cfg.Tick.Rate, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化节拍驱动失败: %v\n", err)
		return 1
	}

	manager, err := resource.New(cfg, logger, resource.Options{Clock: driver})
	if err != nil {
		fmt.Fprintf(stdErr, "挂载资源包失败: %v\n", err)
		return 1
	}
	defer manager.Close()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["root"] = cfg.Path.Root
	fields["mounts"] = len(manager.Mounts())
	fields["tick_rate"] = cfg.Tick.Rate
	fields["ttl_ticks"] = manager.Cache().Policy().Ticks()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("资源包挂载完成")

	switch {
	case opts.list:
		printFiles(manager)
		return 0
	case opts.resolve != "":
		return printResolve(manager, opts.resolve)
	case opts.serve:
		if err := serve(cfg, manager, driver, logger); err != nil {
			fmt.Fprintf(stdErr, "服务运行失败: %v\n", err)
			return 1
		}
		return 0
	default:
		printMounts(manager)
		return 0
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("resvfs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		opts       cliOptions
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 RESVFS_CONFIG 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVar(&opts.list, "list", false, "列出合并后的资源路径及其生效优先级")
	fs.StringVar(&opts.resolve, "resolve", "", "输出指定资源路径的生效挂载")
	fs.BoolVar(&opts.serve, "serve", false, "启动节拍驱动与诊断 HTTP 服务")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("RESVFS_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}
	opts.configPath = path
	return opts, nil
}

func printMounts(manager *resource.Manager) {
	for _, m := range manager.Mounts() {
		fmt.Fprintf(stdOut, "%d\t%s\t%s\n", m.ID, m.Source.Kind(), m.Source.Location())
	}
}

func printFiles(manager *resource.Manager) {
	for _, f := range manager.Files() {
		fmt.Fprintf(stdOut, "%d\t%s\n", f.Owner, f.Path)
	}
}

func printResolve(manager *resource.Manager, raw string) int {
	p, err := vfs.ParsePath(raw)
	if err != nil {
		fmt.Fprintf(stdErr, "非法资源路径: %v\n", err)
		return 1
	}
	mount, err := manager.Resolve(p)
	if err != nil {
		fmt.Fprintf(stdErr, "解析失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdOut, "%s\t%d\t%s\t%s\n", p, mount.ID, mount.Source.Location(), decode.ForPath(p).Key)
	return 0
}

// serve 运行节拍驱动；ListenPort 大于 0 时同时启动诊断服务，直到收到退出信号。
func serve(cfg *config.Config, manager *resource.Manager, driver *ticker.Driver, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := driver.Register("cache_sweep", func(now, _ int64) {
		manager.Tick(now)
	}); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- driver.Run(ctx)
	}()

	port := cfg.Diagnostics.ListenPort
	if port == 0 {
		<-ctx.Done()
		return ignoreCanceled(<-errCh)
	}

	app, err := server.NewApp(server.AppOptions{Logger: logger, ListenPort: port})
	if err != nil {
		return err
	}
	routes.RegisterResourceRoutes(app, manager, logger)
	server.RegisterFallback(app)

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("诊断服务启动")

	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		stop()
		<-errCh
		return err
	}
	stop()
	return ignoreCanceled(<-errCh)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
