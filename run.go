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
	"time"

	"github.com/uniqush/log"

	"github.com/uniqush/uniqush-apns/db"
	"github.com/uniqush/uniqush-apns/srv/apns/binary_api"
	"github.com/uniqush/uniqush-apns/srv/apns/common"
)

// Options are the command line settings of one run.
type Options struct {
	ConfigFile string
	Token      string
	Message    string
	Badge      int
	Sound      string
	// Feedback reads from the feedback service instead of the gateway connection.
	Feedback bool
	// Wait is how long to keep collecting feedback. Zero drains once.
	Wait time.Duration
}

// Run pushes the message in opts if a token is given, then collects feedback.
func Run(opts *Options) error {
	c, err := OpenConfig(opts.ConfigFile)
	if err != nil {
		return err
	}
	loggers, logfile := LoadLoggers(c)
	if logfile != nil {
		defer logfile.Close()
	}
	gwconf, err := LoadGatewayConfig(c)
	if err != nil {
		return err
	}

	var store db.FeedbackDatabase
	if dbconf := LoadDatabaseConfig(c); dbconf != nil {
		store, err = db.NewFeedbackDatabase(dbconf, loggers[LoggerDatabase])
		if err != nil {
			loggers[LoggerDatabase].Errorf("Cannot open database %v: %v", dbconf, err)
			return err
		}
	}

	var gateway *binary_api.Client
	if opts.Token != "" || !opts.Feedback {
		gateway, err = binary_api.Dial(gwconf, loggers[LoggerGateway])
		if err != nil {
			return err
		}
		defer gateway.Close()
	}

	if opts.Token != "" {
		if _, err := gateway.PushMessage(opts.Token, opts.Message, opts.Badge, opts.Sound); err != nil {
			return err
		}
		loggers[LoggerGateway].Infof("Token=%v Message sent", opts.Token)
	}

	source := gateway
	logger := loggers[LoggerGateway]
	if opts.Feedback {
		fbconf, err := LoadFeedbackConfig(c, gwconf)
		if err != nil {
			return err
		}
		logger = loggers[LoggerFeedback]
		source, err = binary_api.Dial(fbconf, logger)
		if err != nil {
			return err
		}
		defer source.Close()
	}

	_, err = collectFeedback(source, opts.Wait, logger, store)
	return err
}

// collectFeedback drains client until wait has elapsed, logging every record and recording it in store if not nil.
func collectFeedback(client *binary_api.Client, wait time.Duration, logger log.Logger, store db.FeedbackDatabase) ([]*common.FeedbackRecord, error) {
	var ret []*common.FeedbackRecord
	deadline := time.Now().Add(wait)
	for {
		records, err := client.DrainFeedback()
		for _, rec := range records {
			logger.Infof("Token=%v Unreachable since %v", rec.Token, rec.Time().UTC())
			if store == nil {
				continue
			}
			if _, serr := store.AddFeedback(rec); serr != nil {
				logger.Errorf("Token=%v Cannot record feedback: %v", rec.Token, serr)
			}
		}
		ret = append(ret, records...)
		if err != nil {
			return ret, err
		}
		if !time.Now().Before(deadline) {
			return ret, nil
		}
	}
}
