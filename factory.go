package main

import (
	"net/url"
)

var connectorFactories = []ConnectorFactory{
	&FTPConnectorFactory{},
	&SFTPConnectorFactory{},
	&SCPConnectorFactory{},
}

func getConnectorFactory(factories []ConnectorFactory, u *url.URL) ConnectorFactory {
	for _, factory := range factories {
		if factory.Accept(u) {
			return factory
		}
	}
	return nil
}

func supportedSchemes(factories []ConnectorFactory) []string {
	names := make([]string, 0, len(factories))
	for _, factory := range factories {
		names = append(names, factory.Name())
	}
	return names
}
