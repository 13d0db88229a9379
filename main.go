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
	"flag"
	"fmt"
	"os"
)

var uniqushAPNSConfFlag = flag.String("config", defaultConfigFilePath, "Config file path")
var uniqushAPNSShowVersionFlag = flag.Bool("version", false, "Version info")
var uniqushAPNSTokenFlag = flag.String("token", "", "Device token (64 hex digits) to push to")
var uniqushAPNSMsgFlag = flag.String("msg", "", "Alert text")
var uniqushAPNSBadgeFlag = flag.Int("badge", 0, "Badge number")
var uniqushAPNSSoundFlag = flag.String("sound", "default", "Sound name")
var uniqushAPNSFeedbackFlag = flag.Bool("feedback", false, "Read feedback from the feedback service instead of the gateway connection")
var uniqushAPNSWaitFlag = flag.Duration("wait", 0, "How long to keep collecting feedback")

var uniqushAPNSVersion = "uniqush-apns 0.1.0"

func main() {
	flag.Parse()
	if *uniqushAPNSShowVersionFlag {
		fmt.Printf("%v\n", uniqushAPNSVersion)
		return
	}

	err := Run(&Options{
		ConfigFile: *uniqushAPNSConfFlag,
		Token:      *uniqushAPNSTokenFlag,
		Message:    *uniqushAPNSMsgFlag,
		Badge:      *uniqushAPNSBadgeFlag,
		Sound:      *uniqushAPNSSoundFlag,
		Feedback:   *uniqushAPNSFeedbackFlag,
		Wait:       *uniqushAPNSWaitFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
