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

package db

import (
	"fmt"
)

// DatabaseConfig selects the store that keeps feedback records.
type DatabaseConfig struct {
	Engine   string
	Name     string
	Password string
	Host     string
	Port     int

	// CacheSize is the number of tokens remembered in memory to skip redundant writes.
	CacheSize int
}

func (c *DatabaseConfig) String() string {
	return fmt.Sprintf("engine: %v; name: %v; host: %v; port: %d; cachesize: %d",
		c.Engine, c.Name, c.Host, c.Port, c.CacheSize)
}
