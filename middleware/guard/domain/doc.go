// Package domain define contratos e tipos de domínio do guard: identidade do cliente,
// janela fixa de admissão, contadores de tráfego e cache de respostas computadas.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as regras
// (ex.: quando uma janela expira) dos detalhes de infraestrutura.
package domain
