/*
 * ia32core - Main process.
 *
 * Copyright 2026, ia32core contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	config "github.com/openpcemu/ia32core/config/configparser"
	"github.com/openpcemu/ia32core/core"
	"github.com/openpcemu/ia32core/cpu"
	"github.com/openpcemu/ia32core/device"
	"github.com/openpcemu/ia32core/memory"
	"github.com/openpcemu/ia32core/util/debug"
	"github.com/openpcemu/ia32core/util/loader"
	logger "github.com/openpcemu/ia32core/util/logger"
)

var Logger *slog.Logger

// defaultMemoryKiB is used when a configuration file does not specify
// a MEMORY line.
const defaultMemoryKiB = 16 * 1024

func main() {
	optConfig := getopt.StringLong("config", 'c', "ia32.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optTry := getopt.StringLong("try", 't', "", "Load a flat binary at 1000:0000 and run it")
	optDebug := getopt.BoolLong("debug", 'd', "Enable debug logging to stderr")
	optTrace := getopt.StringLong("trace", 'T', "", "Comma-separated trace subsystems (cpu,paging,desc,io,irq,task,all)")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	if *optTrace != "" {
		mask, err := debug.ParseMask(*optTrace)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		debug.SetMask(mask)
	}

	var file *os.File
	if optLogFile != nil && *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug))
	slog.SetDefault(Logger)

	Logger.Info("ia32core started")

	var cfg *config.Config
	if *optTry == "" {
		if optConfig == nil || *optConfig == "" {
			Logger.Error("please specify a configuration file")
			os.Exit(1)
		}
		if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
			Logger.Error("configuration file can't be found", "path", *optConfig)
			os.Exit(1)
		}
		var err error
		cfg, err = config.LoadConfigFile(*optConfig)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
	} else {
		cfg = &config.Config{MemoryKiB: defaultMemoryKiB}
	}

	memKiB := cfg.MemoryKiB
	if memKiB == 0 {
		memKiB = defaultMemoryKiB
	}
	mem := memory.New(memKiB * 1024)
	ports := device.NewRegistry()

	for _, p := range cfg.Preloads {
		addr := uint32(p.Segment)<<4 + p.Offset
		n, err := loader.LoadFile(mem, addr, p.Path)
		if err != nil {
			Logger.Error("preload failed", "path", p.Path, "error", err)
			os.Exit(1)
		}
		Logger.Info("preloaded image", "path", p.Path, "bytes", n, "addr", fmt.Sprintf("%05x", addr))
	}

	c := cpu.New(mem, ports, Logger)

	if cfg.HasStart {
		c.Seg[cpu.SegCS].Selector = 0
		c.Seg[cpu.SegCS].Cache.Base = uint32(cfg.StartCS) << 4
		c.EIP = cfg.StartEIP
	}

	if *optTry != "" {
		n, err := loader.LoadFile(mem, 0x10000, *optTry)
		if err != nil {
			Logger.Error("--try load failed", "path", *optTry, "error", err)
			os.Exit(1)
		}
		Logger.Info("loaded trial image", "path", *optTry, "bytes", n)
		c.Seg[cpu.SegCS].Selector = 0x1000
		c.Seg[cpu.SegCS].Cache.Base = 0x10000
		c.EIP = 0
		c.Regs[cpu.RegESP] = 0x1000
		c.SetFlag(cpu.FlagIF, false)
	}

	cr := core.New(c, Logger)
	go cr.Run()
	cr.Post(core.Packet{Kind: core.EnterMainLoop})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msg := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			input, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			msg <- input
		}
	}()

loop:
	for {
		select {
		case <-sigChan:
			fmt.Println("got quit signal")
			break loop
		case line := <-msg:
			switch line {
			case "reboot\n":
				cr.Post(core.Packet{Kind: core.HardReboot})
			case "halt\n":
				cr.Post(core.Packet{Kind: core.ExitMainLoop})
			case "go\n":
				cr.Post(core.Packet{Kind: core.EnterMainLoop})
			}
		}
	}

	Logger.Info("shutting down")
	cr.Stop()
	Logger.Info("stopped")
}
