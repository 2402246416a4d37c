// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

const (
	listenerClosedError = stompErrorMessage("connection listener closed")
	serverRunningError  = stompErrorMessage("server is already running")
)

type stompErrorMessage string

func (e stompErrorMessage) Error() string {
	return string(e)
}
