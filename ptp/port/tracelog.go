/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package port

import (
	"fmt"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
)

// logSent/logReceive color-code protocol trace lines green/blue, the same
// convention ptp/sptp/client's logSent/logReceive use to make master vs.
// slave traffic visually distinguishable in a debug-level log stream.
func (p *Port) logSent(t string, msg string, v ...interface{}) {
	log.Debugf(color.GreenString("[%v] -> %s (%s)", p.cfg.PortIdentity, t, fmt.Sprintf(msg, v...)))
}

func (p *Port) logReceive(t string, msg string, v ...interface{}) {
	log.Debugf(color.BlueString("[%v] <- %s (%s)", p.cfg.PortIdentity, t, fmt.Sprintf(msg, v...)))
}
