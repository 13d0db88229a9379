/*
 * Copyright 2011 Nan Deng
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/uniqush/goconf/conf"
	"github.com/uniqush/log"

	"github.com/uniqush/uniqush-apns/db"
	"github.com/uniqush/uniqush-apns/push"
	"github.com/uniqush/uniqush-apns/srv/apns/binary_api"
	"github.com/uniqush/uniqush-apns/srv/apns/common"
)

// Logger*
const (
	LoggerGateway = iota
	LoggerFeedback
	LoggerDatabase
	NumberOfLoggers
)

func extractLogLevel(loglevel string) (int, string) {
	warningMsg := ""
	var level int
	switch strings.ToLower(loglevel) {
	case "alert":
		level = log.LOGLEVEL_ALERT
	case "error":
		level = log.LOGLEVEL_ERROR
	case "warn", "warning":
		level = log.LOGLEVEL_WARN
	case "standard", "verbose", "info":
		level = log.LOGLEVEL_INFO
	case "debug":
		level = log.LOGLEVEL_DEBUG
	default:
		warningMsg = fmt.Sprintf("Unsupported loglevel %q. Supported values: alert, error, warn/warning, standard/verbose/info, and debug", loglevel)
		level = log.LOGLEVEL_INFO
	}
	return level, warningMsg
}

func loadLogger(writer io.Writer, c *conf.ConfigFile, field string, prefix string) log.Logger {
	logswitch, err := c.GetBool(field, "log")
	if err != nil {
		logswitch = true
	}
	if writer == nil {
		writer = os.Stderr
	}
	loglevel, err := c.GetString(field, "loglevel")
	if err != nil {
		loglevel = "standard"
	}

	level := log.LOGLEVEL_SILENT
	warningMsg := ""
	if logswitch {
		level, warningMsg = extractLogLevel(loglevel)
	}

	logger := log.NewLogger(writer, prefix, level)
	if warningMsg != "" {
		logger.Warn(warningMsg)
	}
	return logger
}

const (
	defaultConfigFilePath = "/etc/uniqush/uniqush-apns.conf"
)

// OpenConfig opens the config file at filename, or the default path if filename is empty.
func OpenConfig(filename string) (*conf.ConfigFile, error) {
	if filename == "" {
		filename = defaultConfigFilePath
	}
	c, err := conf.ReadConfigFile(filename)
	if err != nil {
		return nil, push.NewConfigurationError(filename, err)
	}
	return c, nil
}

// LoadLoggers returns one logger per Logger* constant, all writing to [default] logfile (stderr if unset).
// The returned file is the opened log file, or nil when logging to stderr; the caller closes it.
func LoadLoggers(c *conf.ConfigFile) ([]log.Logger, *os.File) {
	var logfile *os.File
	var openErr error
	logfilename, err := c.GetString("default", "logfile")
	if err == nil && logfilename != "" {
		logfile, openErr = os.OpenFile(logfilename, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if openErr != nil {
			logfile = nil
		}
	}
	var writer io.Writer = os.Stderr
	if logfile != nil {
		writer = logfile
	}

	loggers := make([]log.Logger, NumberOfLoggers)
	loggers[LoggerGateway] = loadLogger(writer, c, "Gateway", "[Gateway]")
	loggers[LoggerFeedback] = loadLogger(writer, c, "Feedback", "[Feedback]")
	loggers[LoggerDatabase] = loadLogger(writer, c, "Database", "[Database]")
	if openErr != nil {
		loggers[LoggerGateway].Warnf("Cannot open log file %q, logging to stderr: %v", logfilename, openErr)
	}
	return loggers, logfile
}

// LoadGatewayConfig returns the validated [Gateway] section.
func LoadGatewayConfig(cf *conf.ConfigFile) (*binary_api.Config, error) {
	c := new(binary_api.Config)
	sandbox, err := cf.GetBool("Gateway", "sandbox")
	if err != nil {
		sandbox = false
	}
	c.Host, err = cf.GetString("Gateway", "host")
	if err != nil || c.Host == "" {
		c.Host = common.DefaultGatewayHost(sandbox)
	}
	c.Port, err = cf.GetInt("Gateway", "port")
	if err != nil || c.Port <= 0 {
		c.Port = common.GatewayPort
	}
	c.CertFile, err = cf.GetString("Gateway", "cert")
	if err != nil {
		return nil, push.NewConfigurationErrorf("Gateway.cert", "missing client certificate")
	}
	c.KeyFile, err = cf.GetString("Gateway", "key")
	if err != nil || c.KeyFile == "" {
		// The key may be stored with the certificate.
		c.KeyFile = c.CertFile
	}
	if env, err := cf.GetString("Gateway", "passphrase_env"); err == nil && env != "" {
		c.Passphrase = binary_api.EnvPassphrase(env)
	}
	if secs, err := cf.GetInt("Gateway", "connect_timeout"); err == nil && secs > 0 {
		c.ConnectTimeout = time.Duration(secs) * time.Second
	}
	if ms, err := cf.GetInt("Gateway", "poll_timeout"); err == nil && ms > 0 {
		c.PollTimeout = time.Duration(ms) * time.Millisecond
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFeedbackConfig returns the [Feedback] section. Credentials and timeouts are shared with the gateway.
func LoadFeedbackConfig(cf *conf.ConfigFile, gateway *binary_api.Config) (*binary_api.Config, error) {
	c := *gateway
	var err error
	c.Host, err = cf.GetString("Feedback", "host")
	if err != nil || c.Host == "" {
		c.Host = common.FeedbackAddress(gateway.Host)
	}
	c.Port, err = cf.GetInt("Feedback", "port")
	if err != nil || c.Port <= 0 {
		c.Port = common.FeedbackPort
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadDatabaseConfig returns the [Database] section, or nil if the file has none.
func LoadDatabaseConfig(cf *conf.ConfigFile) *db.DatabaseConfig {
	var err error
	c := new(db.DatabaseConfig)
	c.Engine, err = cf.GetString("Database", "engine")
	if err != nil || c.Engine == "" {
		return nil
	}
	c.Name, err = cf.GetString("Database", "name")
	if err != nil || c.Name == "" {
		c.Name = "0"
	}
	c.Port, err = cf.GetInt("Database", "port")
	if err != nil || c.Port <= 0 {
		c.Port = -1
	}
	c.Host, err = cf.GetString("Database", "host")
	if err != nil || c.Host == "" {
		c.Host = "localhost"
	}
	c.Password, err = cf.GetString("Database", "password")
	if err != nil {
		c.Password = ""
	}
	c.CacheSize, err = cf.GetInt("Database", "cachesize")
	if err != nil || c.CacheSize < 0 {
		c.CacheSize = 1024
	}
	return c
}
