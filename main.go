package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/campus-signal-sim/clock"
	"github.com/tsinghua-fib-lab/campus-signal-sim/entity"
	"github.com/tsinghua-fib-lab/campus-signal-sim/storage"
	"github.com/tsinghua-fib-lab/campus-signal-sim/task"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/config"
	"github.com/tsinghua-fib-lab/campus-signal-sim/utils/input"
	"gopkg.in/yaml.v2"
)

var (
	// 模拟任务名，用于日志与输出标识
	job = flag.String("job", "campus0", "the name of the simulation task")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path (empty means built-in defaults)")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 路网布局文件路径，为空时使用内置演示校园
	layoutPath = flag.String("layout", "", "road network layout file path (empty means built-in demo campus)")
	// 已有数据的store不重复灌入路网
	skipProvision = flag.Bool("skip-provision", false, "skip provisioning (store already holds a network)")
	// 随机数种子
	seed = flag.Uint64("seed", 43, "random seed for vehicle generation")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "main")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	// 获取配置：文件/内嵌数据覆盖缺省值，两者都缺省时直接用内置参数运行
	c := config.Default()
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	}
	if len(file) > 0 {
		if err := yaml.UnmarshalStrict(file, &c); err != nil {
			log.Panicf("config file load err: %v", err)
		}
	}
	log.Infof("%+v", c)

	ctx := context.Background()

	// store选择：配置了MongoDB连接串则共享持久层，否则单机内存运行
	var store entity.IStore
	if c.Input.URI != "" {
		ms, err := storage.NewMongoStore(ctx, c.Input.URI, c.Input.DB)
		if err != nil {
			log.Panicf("mongo store init err: %v", err)
		}
		defer ms.Close(ctx)
		store = ms
	} else {
		log.Info("no mongodb uri configured, using in-memory store")
		store = storage.NewMemoryStore()
	}

	clk := clock.New()

	// 路网灌入
	if !*skipProvision {
		layout := input.Demo()
		if *layoutPath != "" {
			if layout, err = input.Load(*layoutPath); err != nil {
				log.Panicf("layout load err: %v", err)
			}
		}
		fixed := c.Signal.Fixed
		timing := entity.LightTiming{Red: fixed.Red, Yellow: fixed.Yellow, Green: fixed.Green}
		if err := layout.Provision(ctx, store, timing, clk.Now()); err != nil {
			log.Panicf("provision err: %v", err)
		}
		log.Infof("provisioned %d intersections", len(layout.Intersections))
	}

	t := task.NewContext(*job, c, store, clk, *seed)
	if err := t.Init(ctx); err != nil {
		log.Panicf("task init err: %v", err)
	}

	s := task.NewScheduler(t)
	s.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("received %s, shutting down", sig)
	s.Stop()
}
