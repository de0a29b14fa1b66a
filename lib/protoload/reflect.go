/*
 *
 * protobridge - protobuf definition graphs and write-handler caches
 * Copyright (C) 2026 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package protoload

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	reflectpb "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

// Reflect downloads the schemas of every service that the server behind
// conn exposes through the reflection API, with their dependencies.
func Reflect(ctx context.Context, conn grpc.ClientConnInterface) (*protoregistry.Files, error) {
	client := reflectpb.NewServerReflectionClient(conn)
	methodClient, err := client.ServerReflectionInfo(ctx)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("can't get server info: %w", err), exitcodes.LoaderFailure)
	}
	defer func() { _ = methodClient.CloseSend() }()

	fdset, err := reflectFileDescriptors(methodClient)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.LoaderFailure)
	}
	return newFiles(fdset)
}

func reflectFileDescriptors(client sendReceiver) (*descriptorpb.FileDescriptorSet, error) {
	req := &reflectpb.ServerReflectionRequest{
		MessageRequest: &reflectpb.ServerReflectionRequest_ListServices{},
	}
	resp, err := sendReceive(client, req)
	if err != nil {
		return nil, fmt.Errorf("can't list services: %w", err)
	}
	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		return nil, errors.New("can't list services, nil response")
	}

	r := &resolver{client: client, seen: make(map[string]bool)}
	for _, service := range listResp.GetService() {
		req := &reflectpb.ServerReflectionRequest{
			MessageRequest: &reflectpb.ServerReflectionRequest_FileContainingSymbol{
				FileContainingSymbol: service.GetName(),
			},
		}
		if err = r.fetch(req); err != nil {
			return nil, fmt.Errorf("can't get the file of service %q: %w", service.GetName(), err)
		}
	}
	if err = r.fetchMissingDependencies(); err != nil {
		return nil, err
	}
	return &descriptorpb.FileDescriptorSet{File: r.files}, nil
}

// resolver collects file descriptors from reflection responses, each file
// once. Servers return the same file for every service it declares.
type resolver struct {
	client sendReceiver
	seen   map[string]bool
	files  []*descriptorpb.FileDescriptorProto
}

func (r *resolver) fetch(req *reflectpb.ServerReflectionRequest) error {
	resp, err := sendReceive(r.client, req)
	if err != nil {
		return err
	}
	if errResp := resp.GetErrorResponse(); errResp != nil {
		return fmt.Errorf("server error %d: %s", errResp.GetErrorCode(), errResp.GetErrorMessage())
	}
	for _, raw := range resp.GetFileDescriptorResponse().GetFileDescriptorProto() {
		fdp := new(descriptorpb.FileDescriptorProto)
		if err = proto.Unmarshal(raw, fdp); err != nil {
			return fmt.Errorf("can't unmarshal file descriptor: %w", err)
		}
		if r.seen[fdp.GetName()] {
			continue
		}
		r.seen[fdp.GetName()] = true
		r.files = append(r.files, fdp)
	}
	return nil
}

// fetchMissingDependencies asks for imported files that the server left out
// of its earlier responses, until every import is known.
func (r *resolver) fetchMissingDependencies() error {
	for i := 0; i < len(r.files); i++ {
		for _, dep := range r.files[i].GetDependency() {
			if r.seen[dep] {
				continue
			}
			req := &reflectpb.ServerReflectionRequest{
				MessageRequest: &reflectpb.ServerReflectionRequest_FileByFilename{FileByFilename: dep},
			}
			if err := r.fetch(req); err != nil {
				return fmt.Errorf("can't get dependency %q: %w", dep, err)
			}
			if !r.seen[dep] {
				return fmt.Errorf("server did not return dependency %q", dep)
			}
		}
	}
	return nil
}

// sendReceiver is the part of the reflection stream client that is used
// here, so tests can stand in for a server.
type sendReceiver interface {
	Send(*reflectpb.ServerReflectionRequest) error
	Recv() (*reflectpb.ServerReflectionResponse, error)
}

func sendReceive(
	client sendReceiver,
	req *reflectpb.ServerReflectionRequest,
) (*reflectpb.ServerReflectionResponse, error) {
	if err := client.Send(req); err != nil {
		return nil, fmt.Errorf("can't send request: %w", err)
	}
	resp, err := client.Recv()
	if err != nil {
		return nil, fmt.Errorf("can't receive response: %w", err)
	}
	return resp, nil
}
