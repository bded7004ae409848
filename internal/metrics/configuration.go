// Copyright 2022-2023 The MaxMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

// Configuration represents the configuration used to export the metrics.
type Configuration struct {
	// Address is the TCP address (<IP>:<port>) where the Prometheus metrics are exported.
	Address string

	// Path is the path where the metrics are exported.
	Path string

	// Profiling indicates whether profiling data should be exported as well.
	Profiling bool
}
